package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"BoostProg/hub"
	"BoostProg/lwp"
)

// fakeCommands записывает вызовы команд в виде строк
type fakeCommands struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error // префикс вызова -> ошибка
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{fail: map[string]error{}}
}

func (f *fakeCommands) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	for prefix, err := range f.fail {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			return err
		}
	}
	return nil
}

func (f *fakeCommands) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCommands) SetLEDColor(_ context.Context, role hub.Role, color lwp.Color) error {
	return f.record(fmt.Sprintf("led %s %s", role, color))
}

func (f *fakeCommands) RunInternalMotor(_ context.Context, role hub.Role, which lwp.Port, power, durationMs int, dir lwp.Direction) error {
	return f.record(fmt.Sprintf("motor %s %s %d %d %s", role, which, power, durationMs, dirName(dir)))
}

func (f *fakeCommands) RunInternalMotors(_ context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error {
	return f.record(fmt.Sprintf("motors %s %d %d %s", role, power, durationMs, dirName(dir)))
}

func (f *fakeCommands) RunExternalMotor(_ context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error {
	return f.record(fmt.Sprintf("external %s %d %d %s", role, power, durationMs, dirName(dir)))
}

func (f *fakeCommands) ArmSensor(_ context.Context, role hub.Role, sensor lwp.Sensor) error {
	return f.record(fmt.Sprintf("arm %s %s", role, sensor))
}

func (f *fakeCommands) DisarmSensor(_ context.Context, role hub.Role, sensor lwp.Sensor) error {
	return f.record(fmt.Sprintf("disarm %s %s", role, sensor))
}

func dirName(dir lwp.Direction) string {
	if dir == lwp.CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// fakePeer записывает цвета внешнего устройства
type fakePeer struct {
	mu     sync.Mutex
	colors []lwp.Color
}

func (p *fakePeer) SetColor(_ context.Context, color lwp.Color) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors = append(p.colors, color)
	return nil
}

func (p *fakePeer) Colors() []lwp.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]lwp.Color(nil), p.colors...)
}

// fakeLight считает переключения лампы
type fakeLight struct {
	mu      sync.Mutex
	toggles int
	err     error
}

func (l *fakeLight) Toggle(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toggles++
	return l.err
}

func (l *fakeLight) Toggles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.toggles
}

// journal общий журнал вызовов жизненного цикла для проверки порядка
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// recorder поведение, записывающее свой жизненный цикл
type recorder struct {
	id        string
	log       *journal
	deps      []hub.Role
	setupErr  error
	handleErr error
	panicMsg  string
	handled   []hub.Update
	teardowns int
}

func (p *recorder) Setup(context.Context) error {
	p.log.add(p.id + ".setup")
	return p.setupErr
}

func (p *recorder) HandleEvent(_ context.Context, u hub.Update) error {
	p.log.add(p.id + ".handle")
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	p.handled = append(p.handled, u)
	return p.handleErr
}

func (p *recorder) Teardown(context.Context) error {
	p.log.add(p.id + ".teardown")
	p.teardowns++
	return nil
}

func (p *recorder) DependsOn() []hub.Role {
	return p.deps
}

var errBoom = errors.New("boom")

// notify собирает уведомление из кадра
func notify(t *testing.T, role hub.Role, frame []byte, ports lwp.PortMap) hub.Update {
	t.Helper()
	ev, err := lwp.Decode(frame, ports)
	require.NoError(t, err)
	return hub.Update{Kind: hub.Notification, Role: role, Event: ev}
}

func buttonFrame(pressed bool) []byte {
	v := byte(0x00)
	if pressed {
		v = 0x01
	}
	return []byte{0x06, 0x00, 0x01, 0x02, 0x06, v}
}

func tiltFrame(o lwp.TiltOrientation) []byte {
	return []byte{0x05, 0x00, 0x45, 0x3a, byte(o)}
}
