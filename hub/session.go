package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"BoostProg/logging"
	"BoostProg/lwp"
)

// Ошибки сессии
var (
	// ErrNotReady роль не в состоянии Ready, команда отклонена без постановки в очередь
	ErrNotReady = errors.New("hub: хаб не готов")
	// ErrWriteFailed радио не смогло записать кадр
	ErrWriteFailed = errors.New("hub: ошибка записи")
	// ErrClosed сессия закрыта
	ErrClosed = errors.New("hub: сессия закрыта")
)

// DefaultScanTimeout время сканирования по умолчанию
const DefaultScanTimeout = 10 * time.Second

const (
	inboxSize      = 256
	subscriberSize = 256
	writeQueueSize = 64
)

// Options параметры сессии
type Options struct {
	ScanTimeout time.Duration
	// Ports начальные назначения логических портов
	Ports map[Role]lwp.PortMap
	// AutoAssignPorts назначать букву порта по уведомлению о подключении
	// датчика цвета или внешнего мотора, если порт еще не назначен
	AutoAssignPorts bool
}

// WriteResult итог одной записи кадра
type WriteResult struct {
	ID    uuid.UUID
	Role  Role
	Frame lwp.Frame
	Err   error
}

type writeRequest struct {
	id    uuid.UUID
	frame lwp.Frame
	done  chan WriteResult
}

type snapshot struct {
	links    map[Role]LinkState
	ports    map[Role]lwp.PortMap
	attached map[Role][]Attachment
}

// Session владеет состоянием обеих ролей. Все изменения выполняет одна
// горутина-актор; API и обратные вызовы радио передают ей замыкания.
// Чтение для Send идет из снимка, который публикует актор.
type Session struct {
	radio Radio
	opts  Options

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// только для актора
	links    map[Role]*LinkState
	ports    map[Role]lwp.PortMap
	attached map[Role]map[byte]Attachment
	peers    map[PeerID]Role
	channels map[Channel]Role
	scanning bool
	scanGen  int
	scanStop *time.Timer

	snapMu sync.RWMutex
	snap   snapshot

	writers map[Role]chan writeRequest

	subscribersMutex sync.Mutex
	subscribers      []*subscriber
}

// subscriber канал одного подписчика. mu сериализует отправку и закрытие
// канала, done снимает актора с заблокированной отправки.
type subscriber struct {
	ch       chan Update
	done     chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
	closed   bool
}

func (sub *subscriber) stop() {
	sub.doneOnce.Do(func() { close(sub.done) })
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// NewSession создает сессию и запускает актор
func NewSession(radio Radio, opts Options) *Session {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}

	s := &Session{
		radio:    radio,
		opts:     opts,
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
		links:    make(map[Role]*LinkState),
		ports:    make(map[Role]lwp.PortMap),
		attached: make(map[Role]map[byte]Attachment),
		peers:    make(map[PeerID]Role),
		channels: make(map[Channel]Role),
		writers:  make(map[Role]chan writeRequest),
	}
	now := time.Now()
	for _, role := range Roles {
		s.links[role] = &LinkState{Role: role, State: StateIdle, Since: now}
		s.ports[role] = opts.Ports[role]
		s.attached[role] = make(map[byte]Attachment)
		s.writers[role] = make(chan writeRequest, writeQueueSize)
	}
	s.publish()

	radio.SetHandler(s)

	s.wg.Add(1)
	go s.loop()
	for _, role := range Roles {
		s.wg.Add(1)
		go s.writeLoop(role)
	}
	return s
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.done:
			return
		}
	}
}

// do выполняет fn в акторе и ждет завершения
func (s *Session) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.inbox <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// post ставит fn в очередь актора без ожидания
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

// Close останавливает актор и закрывает каналы подписчиков. Актор не
// ждет медленных подписчиков: отправка прерывается закрытием done.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		// актор остановлен, состояние можно трогать напрямую
		s.stopScan()

		s.subscribersMutex.Lock()
		subs := s.subscribers
		s.subscribers = nil
		s.subscribersMutex.Unlock()
		for _, sub := range subs {
			sub.stop()
			sub.close()
		}
	})
	return nil
}

// Subscribe возвращает канал событий сессии и функцию отписки. Отписка не
// блокируется, даже если подписчик перестал читать канал.
func (s *Session) Subscribe() (<-chan Update, func()) {
	sub := &subscriber{
		ch:   make(chan Update, subscriberSize),
		done: make(chan struct{}),
	}
	s.subscribersMutex.Lock()
	s.subscribers = append(s.subscribers, sub)
	s.subscribersMutex.Unlock()

	cancel := func() {
		sub.stop()
		s.subscribersMutex.Lock()
		for i, other := range s.subscribers {
			if other == sub {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
		s.subscribersMutex.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// emit публикует снимок и раздает событие всем подписчикам. Вызывается
// только актором, поэтому порядок событий одной роли сохраняется.
func (s *Session) emit(u Update) {
	if u.At.IsZero() {
		u.At = time.Now()
	}
	s.publish()

	s.subscribersMutex.Lock()
	subs := make([]*subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subscribersMutex.Unlock()

	for _, sub := range subs {
		sub.send(u, s.done)
	}
}

// send блокируется, пока подписчик не освободит место в буфере, не
// отпишется или сессия не закроется
func (sub *subscriber) send(u Update, closed <-chan struct{}) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- u:
	case <-sub.done:
	case <-closed:
	}
}

// publish обновляет снимок для читателей вне актора
func (s *Session) publish() {
	snap := snapshot{
		links:    make(map[Role]LinkState, len(s.links)),
		ports:    make(map[Role]lwp.PortMap, len(s.ports)),
		attached: make(map[Role][]Attachment, len(s.attached)),
	}
	for role, link := range s.links {
		snap.links[role] = *link
		snap.ports[role] = s.ports[role]
		list := make([]Attachment, 0, len(s.attached[role]))
		for _, a := range s.attached[role] {
			list = append(list, a)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].PortID < list[j].PortID })
		snap.attached[role] = list
	}

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}

func (s *Session) setState(role Role, state State) {
	link := s.links[role]
	if link.State == state {
		return
	}
	logging.ForRole(role.String()).Debugf("Состояние: %s -> %s", link.State, state)
	link.State = state
	link.Since = time.Now()
	if state != StateReady {
		link.Notifying = false
	}
}

// State возвращает состояние роли
func (s *Session) State(role Role) LinkState {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap.links[role]
}

// States возвращает состояния всех ролей
func (s *Session) States() map[Role]LinkState {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	out := make(map[Role]LinkState, len(s.snap.links))
	for role, link := range s.snap.links {
		out[role] = link
	}
	return out
}

// Ports возвращает таблицу портов роли
func (s *Session) Ports(role Role) lwp.PortMap {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap.ports[role]
}

// Attached возвращает устройства, о подключении которых сообщил хаб
func (s *Session) Attached(role Role) []Attachment {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	out := make([]Attachment, len(s.snap.attached[role]))
	copy(out, s.snap.attached[role])
	return out
}

// Info возвращает сводку по роли
func (s *Session) Info(role Role) HubInfo {
	return HubInfo{Link: s.State(role), Ports: s.Ports(role), Attached: s.Attached(role)}
}

// Connect идемпотентно подключает обе роли. Роли без найденного
// устройства ищутся одним общим сканированием; найденные, но не готовые
// роли подключаются сразу; готовые не затрагиваются.
func (s *Session) Connect() error {
	var err error
	if derr := s.do(func() { err = s.connect() }); derr != nil {
		return derr
	}
	return err
}

func (s *Session) connect() error {
	needScan := false
	for _, role := range Roles {
		link := s.links[role]
		switch link.State {
		case StateIdle:
			s.setState(role, StateScanning)
			needScan = true
		case StateFound:
			s.startConnect(role)
		}
	}

	if needScan && !s.scanning {
		logrus.Info("=== Начало сканирования хабов ===")
		if err := s.radio.StartScan(); err != nil {
			for _, role := range Roles {
				if s.links[role].State == StateScanning {
					s.setState(role, StateIdle)
					s.emit(Update{Kind: ConnectionFailed, Role: role, Err: err})
				}
			}
			s.publish()
			return fmt.Errorf("ошибка сканирования: %w", err)
		}
		s.scanning = true
		s.scanGen++
		gen := s.scanGen
		s.scanStop = time.AfterFunc(s.opts.ScanTimeout, func() {
			s.post(func() { s.scanTimedOut(gen) })
		})
	}
	s.publish()
	return nil
}

func (s *Session) stopScan() {
	if !s.scanning {
		return
	}
	s.scanning = false
	s.scanGen++
	if s.scanStop != nil {
		s.scanStop.Stop()
		s.scanStop = nil
	}
	if err := s.radio.StopScan(); err != nil {
		logrus.Warnf("Ошибка остановки сканирования: %v", err)
	}
	logrus.Info("Сканирование остановлено")
}

func (s *Session) scanTimedOut(gen int) {
	if !s.scanning || gen != s.scanGen {
		return
	}
	logrus.Warn("Время сканирования истекло")
	s.stopScan()
	for _, role := range Roles {
		if s.links[role].State == StateScanning {
			s.setState(role, StateIdle)
			logging.ForRole(role.String()).Warn("Хаб не найден")
			s.emit(Update{Kind: ConnectionFailed, Role: role, Err: errors.New("хаб не найден за время сканирования")})
		}
	}
	s.publish()
}

func (s *Session) startConnect(role Role) {
	link := s.links[role]
	s.setState(role, StateConnecting)
	peer := link.Peer
	spec := role.Info().Channel

	logging.ForRole(role.String()).Infof("Устанавливаем соединение с %s...", peer)
	go func() {
		if err := s.radio.ConnectPeer(peer, spec); err != nil {
			s.post(func() { s.connectFailed(role, peer, err) })
		}
	}()
}

func (s *Session) connectFailed(role Role, peer PeerID, err error) {
	link := s.links[role]
	if link.Peer != peer || link.State != StateConnecting {
		return
	}
	logging.ForRole(role.String()).Errorf("Ошибка подключения: %v", err)
	s.setState(role, StateFound)
	s.emit(Update{Kind: ConnectionFailed, Role: role, Err: err})
}

// Disconnect останавливает сканирование и отключает подключенные роли
func (s *Session) Disconnect() error {
	return s.do(func() {
		s.stopScan()
		for _, role := range Roles {
			link := s.links[role]
			switch link.State {
			case StateScanning:
				s.setState(role, StateIdle)
			case StateReady, StateConnecting:
				s.setState(role, StateDisconnecting)
				peer := link.Peer
				logging.ForRole(role.String()).Info("Отключение от хаба...")
				go func() {
					if err := s.radio.DisconnectPeer(peer); err != nil {
						logging.ForRole(role.String()).Warnf("Ошибка отключения: %v", err)
						s.post(func() { s.peerClosed(role, peer) })
					}
				}()
			}
		}
		s.publish()
	})
}

// peerClosed переводит роль в Idle после закрытия соединения
func (s *Session) peerClosed(role Role, peer PeerID) {
	link := s.links[role]
	if link.Peer != peer {
		return
	}
	switch link.State {
	case StateReady, StateDisconnecting:
		delete(s.channels, link.Channel)
		delete(s.peers, peer)
		link.Channel = 0
		link.Peer = ""
		s.attached[role] = make(map[byte]Attachment)
		s.setState(role, StateIdle)
		logging.ForRole(role.String()).Info("Отключено")
		s.emit(Update{Kind: Disconnected, Role: role})
	case StateConnecting:
		s.connectFailed(role, peer, errors.New("соединение закрыто до готовности"))
	}
}

// OnAdvertisement реализует RadioHandler
func (s *Session) OnAdvertisement(peer PeerID, manufacturerData []byte) {
	data := append([]byte(nil), manufacturerData...)
	s.post(func() { s.handleAdvertisement(peer, data) })
}

func (s *Session) handleAdvertisement(peer PeerID, data []byte) {
	if !s.scanning {
		return
	}
	role, ok := MatchAdvertisement(data)
	if !ok {
		logging.DebugLog("Пропускаем устройство %s: нет дискриминатора", peer)
		return
	}
	link := s.links[role]
	if link.State != StateScanning {
		return
	}
	if other, taken := s.peers[peer]; taken && other != role {
		return
	}

	logging.ForRole(role.String()).Infof("!!! Найден хаб %s [%s]", role.Info().Title, peer)
	link.Peer = peer
	s.peers[peer] = role
	s.setState(role, StateFound)

	stillScanning := false
	for _, r := range Roles {
		if s.links[r].State == StateScanning {
			stillScanning = true
		}
	}
	if !stillScanning {
		s.stopScan()
	}

	s.startConnect(role)
	s.publish()
}

// OnConnectionStateChanged реализует RadioHandler
func (s *Session) OnConnectionStateChanged(peer PeerID, state PeerState, ch Channel) {
	s.post(func() { s.handleConnectionState(peer, state, ch) })
}

func (s *Session) handleConnectionState(peer PeerID, state PeerState, ch Channel) {
	role, ok := s.peers[peer]
	if !ok {
		return
	}
	link := s.links[role]
	log := logging.ForRole(role.String())

	switch state {
	case PeerConnected:
		log.Debug("Соединение установлено, обнаружение служб...")
	case PeerReady:
		if link.State != StateConnecting {
			return
		}
		if ch == 0 {
			s.connectFailed(role, peer, errors.New("характеристика не найдена"))
			return
		}
		link.Channel = ch
		s.channels[ch] = role
		s.setState(role, StateReady)
		log.Info("Хаб готов к работе")
		s.emit(Update{Kind: Connected, Role: role})
		if role.Info().AutoSubscribe {
			go func() {
				if err := s.radio.SetNotifications(ch, true); err != nil {
					log.Warnf("Ошибка подписки на уведомления: %v", err)
					return
				}
				s.post(func() { s.markNotifying(role, ch) })
			}()
		}
	case PeerFailed:
		s.connectFailed(role, peer, errors.New("радио сообщило об ошибке подключения"))
	case PeerDisconnected:
		s.peerClosed(role, peer)
	}
}

// OnDataReceived реализует RadioHandler
func (s *Session) OnDataReceived(ch Channel, data []byte) {
	frame := append([]byte(nil), data...)
	s.post(func() { s.handleData(ch, frame) })
}

func (s *Session) handleData(ch Channel, data []byte) {
	role, ok := s.channels[ch]
	if !ok {
		return
	}
	log := logging.ForRole(role.String())
	logging.DebugLog("[%s] Получено: %s", role, lwp.BytesToHex(data))

	ev, err := lwp.Decode(data, s.ports[role])
	if err != nil {
		log.Debugf("Кадр пропущен: %v", err)
		return
	}

	switch e := ev.(type) {
	case lwp.PortConnected:
		s.attached[role][e.PortID] = Attachment{
			PortID: e.PortID, Port: e.Port, Device: e.Device,
			Name: lwp.DeviceTypeName(e.Device), LastUpdate: time.Now(),
		}
		s.autoAssign(role, e)
	case lwp.UnrecognizedAttachment:
		s.attached[role][e.PortID] = Attachment{
			PortID: e.PortID, Device: e.Device,
			Name: lwp.DeviceTypeName(e.Device), LastUpdate: time.Now(),
		}
	case lwp.PortDisconnected:
		delete(s.attached[role], e.PortID)
	}

	log.Debug(lwp.Describe(ev))
	s.emit(Update{Kind: Notification, Role: role, Event: ev})
}

func (s *Session) autoAssign(role Role, e lwp.PortConnected) {
	if !s.opts.AutoAssignPorts || !e.Port.IsAssignable() {
		return
	}
	if s.ports[role].Letter(e.Port) != lwp.LetterNone {
		return
	}
	var letter lwp.PortLetter
	switch e.PortID {
	case lwp.PORT_BYTE_C:
		letter = lwp.LetterC
	case lwp.PORT_BYTE_D:
		letter = lwp.LetterD
	default:
		return
	}
	ports, err := s.ports[role].With(e.Port, letter)
	if err != nil {
		return
	}
	s.ports[role] = ports
	logging.ForRole(role.String()).Infof("Порт %s назначен на %s", e.Port, letter)
}

// AssignPort назначает логическому порту роли физическую букву
func (s *Session) AssignPort(role Role, port lwp.Port, letter lwp.PortLetter) error {
	var err error
	if derr := s.do(func() {
		var ports lwp.PortMap
		ports, err = s.ports[role].With(port, letter)
		if err != nil {
			return
		}
		s.ports[role] = ports
		s.publish()
		logging.ForRole(role.String()).Infof("Порт %s назначен на %s", port, letter)
	}); derr != nil {
		return derr
	}
	return err
}

// SubscribeNotifications включает уведомления канала роли
func (s *Session) SubscribeNotifications(role Role) error {
	link := s.State(role)
	if link.State != StateReady {
		return fmt.Errorf("%w: %s в состоянии %s", ErrNotReady, role, link.State)
	}
	if err := s.radio.SetNotifications(link.Channel, true); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := s.do(func() { s.markNotifying(role, link.Channel) }); err != nil {
		return err
	}
	logging.ForRole(role.String()).Info("Подписка на уведомления установлена")
	return nil
}

// EnsureNotifications включает уведомления роли, если в текущем цикле
// Ready они еще не включены
func (s *Session) EnsureNotifications(role Role) error {
	if s.State(role).Notifying {
		return nil
	}
	return s.SubscribeNotifications(role)
}

// markNotifying отмечает подписку, если канал роли не сменился
func (s *Session) markNotifying(role Role, ch Channel) {
	link := s.links[role]
	if link.State != StateReady || link.Channel != ch || link.Notifying {
		return
	}
	link.Notifying = true
	s.publish()
}

// SendAsync ставит кадр в очередь записи роли. Канал получает ровно один
// результат. Если роль не готова, результат с ErrNotReady приходит сразу.
func (s *Session) SendAsync(role Role, frame lwp.Frame) <-chan WriteResult {
	req := writeRequest{id: uuid.New(), frame: frame, done: make(chan WriteResult, 1)}

	if link := s.State(role); link.State != StateReady {
		req.done <- WriteResult{ID: req.id, Role: role, Frame: frame,
			Err: fmt.Errorf("%w: %s в состоянии %s", ErrNotReady, role, link.State)}
		return req.done
	}

	queue, ok := s.writers[role]
	if !ok {
		req.done <- WriteResult{ID: req.id, Role: role, Frame: frame, Err: fmt.Errorf("%w: неизвестная роль %d", ErrNotReady, int(role))}
		return req.done
	}
	select {
	case queue <- req:
	case <-s.done:
		req.done <- WriteResult{ID: req.id, Role: role, Frame: frame, Err: ErrClosed}
	}
	return req.done
}

// Send записывает кадр и ждет результат записи. Повторов нет.
func (s *Session) Send(ctx context.Context, role Role, frame lwp.Frame) error {
	select {
	case res := <-s.SendAsync(role, frame):
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeLoop выполняет записи роли по очереди вне актора
func (s *Session) writeLoop(role Role) {
	defer s.wg.Done()
	queue := s.writers[role]
	for {
		select {
		case req := <-queue:
			req.done <- s.write(role, req)
		case <-s.done:
			for {
				select {
				case req := <-queue:
					req.done <- WriteResult{ID: req.id, Role: role, Frame: req.frame, Err: ErrClosed}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) write(role Role, req writeRequest) WriteResult {
	res := WriteResult{ID: req.id, Role: role, Frame: req.frame}

	link := s.State(role)
	if link.State != StateReady {
		res.Err = fmt.Errorf("%w: %s в состоянии %s", ErrNotReady, role, link.State)
		return res
	}
	if err := s.radio.WriteCharacteristic(link.Channel, req.frame.Bytes()); err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrWriteFailed, err)
		logging.ForRole(role.String()).Warnf("Ошибка отправки данных: %v", err)
		return res
	}
	logging.DebugLog("[%s] Данные отправлены: %s (id %s)", role, req.frame, req.id)
	return res
}
