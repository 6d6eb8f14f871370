package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRadio радио для тестов: подключение завершается асинхронно,
// записи запоминаются
type fakeRadio struct {
	mu          sync.Mutex
	handler     RadioHandler
	scans       int
	stops       int
	connects    []PeerID
	disconnects []PeerID
	failPeers   map[PeerID]bool
	holdPeers   map[PeerID]bool
	writes      map[Channel][][]byte
	notify      map[Channel]bool
	writeErr    error
	scanErr     error
	nextCh      Channel
	peerCh      map[PeerID]Channel
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		failPeers: make(map[PeerID]bool),
		holdPeers: make(map[PeerID]bool),
		writes:    make(map[Channel][][]byte),
		notify:    make(map[Channel]bool),
		peerCh:    make(map[PeerID]Channel),
	}
}

func (f *fakeRadio) SetHandler(h RadioHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeRadio) StartScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return f.scanErr
	}
	f.scans++
	return nil
}

func (f *fakeRadio) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRadio) ConnectPeer(peer PeerID, spec ChannelSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, peer)
	h := f.handler

	switch {
	case f.failPeers[peer]:
		go h.OnConnectionStateChanged(peer, PeerFailed, 0)
	case f.holdPeers[peer]:
	default:
		f.nextCh++
		ch := f.nextCh
		f.peerCh[peer] = ch
		go func() {
			h.OnConnectionStateChanged(peer, PeerConnected, 0)
			h.OnConnectionStateChanged(peer, PeerReady, ch)
		}()
	}
	return nil
}

func (f *fakeRadio) DisconnectPeer(peer PeerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, peer)
	h := f.handler
	go h.OnConnectionStateChanged(peer, PeerDisconnected, 0)
	return nil
}

func (f *fakeRadio) WriteCharacteristic(ch Channel, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes[ch] = append(f.writes[ch], append([]byte(nil), data...))
	return nil
}

func (f *fakeRadio) SetNotifications(ch Channel, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify[ch] = enabled
	return nil
}

func (f *fakeRadio) advertise(peer PeerID, discriminator byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.OnAdvertisement(peer, []byte{0x00, discriminator, 0x00, 0x00})
}

func (f *fakeRadio) receive(peer PeerID, data []byte) {
	f.mu.Lock()
	h := f.handler
	ch := f.peerCh[peer]
	f.mu.Unlock()
	h.OnDataReceived(ch, data)
}

func (f *fakeRadio) dropLink(peer PeerID) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.OnConnectionStateChanged(peer, PeerDisconnected, 0)
}

func (f *fakeRadio) counts() (scans, stops, connects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans, f.stops, len(f.connects)
}

func (f *fakeRadio) written(peer PeerID) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[f.peerCh[peer]]
}

func (f *fakeRadio) notifying(peer PeerID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notify[f.peerCh[peer]]
}

var errRadio = errors.New("radio failure")

// expectUpdate ждет событие заданного типа для роли, пропуская остальные
func expectUpdate(t *testing.T, updates <-chan Update, kind UpdateKind, role Role) Update {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			require.True(t, ok, "канал событий закрыт")
			if u.Kind == kind && u.Role == role {
				return u
			}
		case <-timeout:
			require.FailNowf(t, "нет события", "%s для %s", kind, role)
			return Update{}
		}
	}
}

// expectUpdates ждет набор событий в любом порядке, пропуская остальные.
// События разных ролей не упорядочены между собой.
func expectUpdates(t *testing.T, updates <-chan Update, want ...Update) map[Role]Update {
	t.Helper()
	type key struct {
		kind UpdateKind
		role Role
	}
	pending := make(map[key]bool, len(want))
	for _, w := range want {
		pending[key{w.Kind, w.Role}] = true
	}
	got := make(map[Role]Update, len(want))
	timeout := time.After(2 * time.Second)
	for len(pending) > 0 {
		select {
		case u, ok := <-updates:
			require.True(t, ok, "канал событий закрыт")
			k := key{u.Kind, u.Role}
			if pending[k] {
				delete(pending, k)
				got[u.Role] = u
			}
		case <-timeout:
			require.FailNowf(t, "нет событий", "ожидались: %v", pending)
			return nil
		}
	}
	return got
}

// expectNoUpdate проверяет, что событие не пришло за короткое время
func expectNoUpdate(t *testing.T, updates <-chan Update, kind UpdateKind) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case u := <-updates:
			require.NotEqual(t, kind, u.Kind, "лишнее событие для %s", u.Role)
		case <-timeout:
			return
		}
	}
}
