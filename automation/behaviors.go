package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"BoostProg/hub"
	"BoostProg/logging"
	"BoostProg/lwp"
)

// Commands команды хабов, доступные поведениям. Реализуется hub.Controller.
type Commands interface {
	SetLEDColor(ctx context.Context, role hub.Role, color lwp.Color) error
	RunInternalMotor(ctx context.Context, role hub.Role, which lwp.Port, power, durationMs int, dir lwp.Direction) error
	RunInternalMotors(ctx context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error
	RunExternalMotor(ctx context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error
	ArmSensor(ctx context.Context, role hub.Role, sensor lwp.Sensor) error
	DisarmSensor(ctx context.Context, role hub.Role, sensor lwp.Sensor) error
}

// ColorPeer внешнее устройство, которому можно задать цвет (робот-игрушка)
type ColorPeer interface {
	SetColor(ctx context.Context, color lwp.Color) error
}

// LightSink умная лампа. Результат переключения на состояние хабов не влияет.
type LightSink interface {
	Toggle(ctx context.Context) error
}

// notification возвращает событие, если обновление является уведомлением
// от указанной роли
func notification(u hub.Update, role hub.Role) (lwp.Event, bool) {
	if u.Kind != hub.Notification || u.Role != role || u.Event == nil {
		return nil, false
	}
	return u.Event, true
}

// sensorBinding общая часть поведений, работающих от одного датчика
type sensorBinding struct {
	cmd    Commands
	source hub.Role
	sensor lwp.Sensor
}

func (s sensorBinding) Setup(ctx context.Context) error {
	return s.cmd.ArmSensor(ctx, s.source, s.sensor)
}

func (s sensorBinding) Teardown(ctx context.Context) error {
	return s.cmd.DisarmSensor(ctx, s.source, s.sensor)
}

// ColorMirror повторяет цвет датчика на светодиодах
type ColorMirror struct {
	sensorBinding
	targets []hub.Role
}

// NewColorMirror цвет датчика на source -> светодиоды targets
func NewColorMirror(cmd Commands, source hub.Role, targets ...hub.Role) *ColorMirror {
	if len(targets) == 0 {
		targets = []hub.Role{source}
	}
	return &ColorMirror{
		sensorBinding: sensorBinding{cmd: cmd, source: source, sensor: lwp.SensorColor},
		targets:       targets,
	}
}

func (b *ColorMirror) DependsOn() []hub.Role {
	return append([]hub.Role{b.source}, b.targets...)
}

func (b *ColorMirror) HandleEvent(ctx context.Context, u hub.Update) error {
	ev, ok := notification(u, b.source)
	if !ok {
		return nil
	}
	reading, ok := ev.(lwp.ColorSensorReading)
	if !ok {
		return nil
	}
	if reading.Color == lwp.ColorNone {
		return fmt.Errorf("%w: датчик не видит цвет", ErrPrecondition)
	}

	var errs []error
	for _, target := range b.targets {
		if err := b.cmd.SetLEDColor(ctx, target, reading.Color); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ButtonToggleLED каждое нажатие кнопки меняет цвет светодиода на другом хабе
type ButtonToggleLED struct {
	sensorBinding
	target  hub.Role
	colors  [2]lwp.Color
	presses int
}

// NewButtonToggleLED кнопка source -> светодиод target
func NewButtonToggleLED(cmd Commands, source, target hub.Role, colors [2]lwp.Color) *ButtonToggleLED {
	return &ButtonToggleLED{
		sensorBinding: sensorBinding{cmd: cmd, source: source, sensor: lwp.SensorButton},
		target:        target,
		colors:        colors,
	}
}

func (b *ButtonToggleLED) DependsOn() []hub.Role {
	return []hub.Role{b.source, b.target}
}

func (b *ButtonToggleLED) HandleEvent(ctx context.Context, u hub.Update) error {
	ev, ok := notification(u, b.source)
	if !ok {
		return nil
	}
	press, ok := ev.(lwp.ButtonPressed)
	if !ok || !press.Pressed {
		return nil
	}
	color := b.colors[b.presses%2]
	b.presses++
	return b.cmd.SetLEDColor(ctx, b.target, color)
}

// MotorRun параметры запуска мотора
type MotorRun struct {
	Motor     lwp.Port // InternalA, InternalB, InternalAB или ExternalMotor
	Power     int
	Duration  time.Duration
	Direction lwp.Direction
}

func (m MotorRun) run(ctx context.Context, cmd Commands, role hub.Role) error {
	ms := int(m.Duration / time.Millisecond)
	switch m.Motor {
	case lwp.PortInternalA, lwp.PortInternalB:
		return cmd.RunInternalMotor(ctx, role, m.Motor, m.Power, ms, m.Direction)
	case lwp.PortInternalAB:
		return cmd.RunInternalMotors(ctx, role, m.Power, ms, m.Direction)
	case lwp.PortExternalMotor:
		return cmd.RunExternalMotor(ctx, role, m.Power, ms, m.Direction)
	}
	return fmt.Errorf("%w: мотор %s", lwp.ErrInvalidParameter, m.Motor)
}

// ButtonRunMotor нажатие кнопки запускает мотор
type ButtonRunMotor struct {
	sensorBinding
	target hub.Role
	motor  MotorRun
}

// NewButtonRunMotor кнопка source -> мотор на target
func NewButtonRunMotor(cmd Commands, source, target hub.Role, motor MotorRun) *ButtonRunMotor {
	return &ButtonRunMotor{
		sensorBinding: sensorBinding{cmd: cmd, source: source, sensor: lwp.SensorButton},
		target:        target,
		motor:         motor,
	}
}

func (b *ButtonRunMotor) DependsOn() []hub.Role {
	return []hub.Role{b.source, b.target}
}

func (b *ButtonRunMotor) HandleEvent(ctx context.Context, u hub.Update) error {
	ev, ok := notification(u, b.source)
	if !ok {
		return nil
	}
	if press, ok := ev.(lwp.ButtonPressed); !ok || !press.Pressed {
		return nil
	}
	return b.motor.run(ctx, b.cmd, b.target)
}

// DefaultTiltColors цвета по умолчанию для положений хаба
func DefaultTiltColors() map[lwp.TiltOrientation]lwp.Color {
	return map[lwp.TiltOrientation]lwp.Color{
		lwp.TiltFlat:       lwp.ColorGreen,
		lwp.TiltStanding:   lwp.ColorBlue,
		lwp.TiltUpsideDown: lwp.ColorRed,
		lwp.TiltFront:      lwp.ColorYellow,
		lwp.TiltBack:       lwp.ColorPurple,
		lwp.TiltSide:       lwp.ColorWhite,
	}
}

// TiltLED цвет светодиода по положению хаба. Команда отправляется только
// при смене положения.
type TiltLED struct {
	sensorBinding
	target hub.Role
	colors map[lwp.TiltOrientation]lwp.Color
	last   *lwp.TiltOrientation
}

// NewTiltLED наклон source -> светодиод target
func NewTiltLED(cmd Commands, source, target hub.Role, colors map[lwp.TiltOrientation]lwp.Color) *TiltLED {
	if len(colors) == 0 {
		colors = DefaultTiltColors()
	}
	return &TiltLED{
		sensorBinding: sensorBinding{cmd: cmd, source: source, sensor: lwp.SensorTilt},
		target:        target,
		colors:        colors,
	}
}

func (b *TiltLED) DependsOn() []hub.Role {
	return []hub.Role{b.source, b.target}
}

func (b *TiltLED) HandleEvent(ctx context.Context, u hub.Update) error {
	ev, ok := notification(u, b.source)
	if !ok {
		return nil
	}
	tilt, ok := ev.(lwp.TiltReading)
	if !ok {
		return nil
	}
	if b.last != nil && *b.last == tilt.Orientation {
		return nil
	}
	color, ok := b.colors[tilt.Orientation]
	if !ok {
		return fmt.Errorf("%w: нет цвета для положения %s", ErrPrecondition, tilt.Orientation)
	}
	if err := b.cmd.SetLEDColor(ctx, b.target, color); err != nil {
		return err
	}
	orientation := tilt.Orientation
	b.last = &orientation
	return nil
}

// Coaster пока активно, гоняет встроенные моторы вперед и назад с периодом
type Coaster struct {
	cmd    Commands
	role   hub.Role
	power  int
	leg    time.Duration
	period time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoaster период не может быть короче двух отрезков пути
func NewCoaster(cmd Commands, role hub.Role, power int, leg, period time.Duration) (*Coaster, error) {
	if leg <= 0 {
		return nil, fmt.Errorf("%w: длительность отрезка %s", lwp.ErrInvalidParameter, leg)
	}
	if period < 2*leg {
		return nil, fmt.Errorf("%w: период %s короче поездки туда и обратно", lwp.ErrInvalidParameter, period)
	}
	return &Coaster{cmd: cmd, role: role, power: power, leg: leg, period: period}, nil
}

func (b *Coaster) DependsOn() []hub.Role {
	return []hub.Role{b.role}
}

func (b *Coaster) Setup(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.loop(loopCtx)
	return nil
}

func (b *Coaster) loop(ctx context.Context) {
	defer b.wg.Done()
	log := logging.ForRole(b.role.String()).WithField("behavior", "roller_coaster")

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()
	for {
		if err := b.ride(ctx); err != nil {
			log.Warnf("Ошибка поездки: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ride один цикл: вперед, пауза на время отрезка, назад
func (b *Coaster) ride(ctx context.Context) error {
	ms := int(b.leg / time.Millisecond)
	if err := b.cmd.RunInternalMotors(ctx, b.role, b.power, ms, lwp.Clockwise); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(b.leg):
	}
	return b.cmd.RunInternalMotors(ctx, b.role, b.power, ms, lwp.CounterClockwise)
}

func (b *Coaster) HandleEvent(context.Context, hub.Update) error {
	return nil
}

func (b *Coaster) Teardown(context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	return nil
}

// PeerColorOnButton каждое нажатие кнопки задает внешнему устройству
// следующий цвет из цикла
type PeerColorOnButton struct {
	sensorBinding
	peer  ColorPeer
	cycle []lwp.Color
	next  int
}

// NewPeerColorOnButton кнопка source -> цвет peer
func NewPeerColorOnButton(cmd Commands, source hub.Role, peer ColorPeer) *PeerColorOnButton {
	return &PeerColorOnButton{
		sensorBinding: sensorBinding{cmd: cmd, source: source, sensor: lwp.SensorButton},
		peer:          peer,
		cycle:         lwp.LEDColors[1:],
	}
}

func (b *PeerColorOnButton) DependsOn() []hub.Role {
	return []hub.Role{b.source}
}

func (b *PeerColorOnButton) HandleEvent(ctx context.Context, u hub.Update) error {
	ev, ok := notification(u, b.source)
	if !ok {
		return nil
	}
	if press, ok := ev.(lwp.ButtonPressed); !ok || !press.Pressed {
		return nil
	}
	color := b.cycle[b.next%len(b.cycle)]
	b.next++
	return b.peer.SetColor(ctx, color)
}

// PeerColorOnTilt цвет внешнего устройства по положению хаба
type PeerColorOnTilt struct {
	sensorBinding
	peer   ColorPeer
	colors map[lwp.TiltOrientation]lwp.Color
	last   *lwp.TiltOrientation
}

// NewPeerColorOnTilt наклон source -> цвет peer
func NewPeerColorOnTilt(cmd Commands, source hub.Role, peer ColorPeer) *PeerColorOnTilt {
	return &PeerColorOnTilt{
		sensorBinding: sensorBinding{cmd: cmd, source: source, sensor: lwp.SensorTilt},
		peer:          peer,
		colors:        DefaultTiltColors(),
	}
}

func (b *PeerColorOnTilt) DependsOn() []hub.Role {
	return []hub.Role{b.source}
}

func (b *PeerColorOnTilt) HandleEvent(ctx context.Context, u hub.Update) error {
	ev, ok := notification(u, b.source)
	if !ok {
		return nil
	}
	tilt, ok := ev.(lwp.TiltReading)
	if !ok || (b.last != nil && *b.last == tilt.Orientation) {
		return nil
	}
	color, ok := b.colors[tilt.Orientation]
	if !ok {
		return fmt.Errorf("%w: нет цвета для положения %s", ErrPrecondition, tilt.Orientation)
	}
	if err := b.peer.SetColor(ctx, color); err != nil {
		return err
	}
	orientation := tilt.Orientation
	b.last = &orientation
	return nil
}

// MotorLightToggle поворот внешнего мотора рукой переключает лампу.
// Переключение не ждет ответа лампы.
type MotorLightToggle struct {
	sensorBinding
	sink     LightSink
	debounce time.Duration
	timeout  time.Duration
	now      func() time.Time
	last     time.Time
}

// NewMotorLightToggle повороты чаще debounce игнорируются
func NewMotorLightToggle(cmd Commands, source hub.Role, sink LightSink, debounce, timeout time.Duration) *MotorLightToggle {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MotorLightToggle{
		sensorBinding: sensorBinding{cmd: cmd, source: source, sensor: lwp.SensorExternalMotor},
		sink:          sink,
		debounce:      debounce,
		timeout:       timeout,
		now:           time.Now,
	}
}

func (b *MotorLightToggle) DependsOn() []hub.Role {
	return []hub.Role{b.source}
}

func (b *MotorLightToggle) HandleEvent(_ context.Context, u hub.Update) error {
	ev, ok := notification(u, b.source)
	if !ok {
		return nil
	}
	if _, ok := ev.(lwp.ExternalMotorReading); !ok {
		return nil
	}
	now := b.now()
	if !b.last.IsZero() && now.Sub(b.last) < b.debounce {
		return nil
	}
	b.last = now

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.sink.Toggle(ctx); err != nil {
			logging.ForComponent("automation").WithField("behavior", "motor_button_lifx").
				Warnf("Лампа не переключилась: %v", err)
		}
	}()
	return nil
}
