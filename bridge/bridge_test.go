package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BoostProg/hub"
	"BoostProg/lwp"
)

type fakeHubs struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeHubs) record(format string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeHubs) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeHubs) Connect() error    { return f.record("connect") }
func (f *fakeHubs) Disconnect() error { return f.record("disconnect") }

func (f *fakeHubs) SetLEDColor(_ context.Context, role hub.Role, color lwp.Color) error {
	return f.record("led %s %s", role, color)
}

func (f *fakeHubs) RunInternalMotor(_ context.Context, role hub.Role, which lwp.Port, power, durationMs int, dir lwp.Direction) error {
	return f.record("motor %s %s %d %d %d", role, which, power, durationMs, dir)
}

func (f *fakeHubs) RunInternalMotors(_ context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error {
	return f.record("motors %s %d %d %d", role, power, durationMs, dir)
}

func (f *fakeHubs) RunInternalMotorsOpposed(_ context.Context, role hub.Role, power, durationMs int) error {
	return f.record("opposed %s %d %d", role, power, durationMs)
}

func (f *fakeHubs) RunExternalMotor(_ context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error {
	return f.record("external %s %d %d %d", role, power, durationMs, dir)
}

func (f *fakeHubs) ArmSensor(_ context.Context, role hub.Role, sensor lwp.Sensor) error {
	return f.record("arm %s %s", role, sensor)
}

func (f *fakeHubs) DisarmSensor(_ context.Context, role hub.Role, sensor lwp.Sensor) error {
	return f.record("disarm %s %s", role, sensor)
}

func (f *fakeHubs) SendRaw(_ context.Context, role hub.Role, data []byte) error {
	return f.record("raw %s %s", role, lwp.BytesToHex(data))
}

// inbox собирает сообщения одного топика
type inbox struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (i *inbox) add(p []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.payloads = append(i.payloads, append([]byte(nil), p...))
}

func (i *inbox) all() [][]byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([][]byte(nil), i.payloads...)
}

func newTestBroker(t *testing.T) *EmbeddedBroker {
	t.Helper()
	broker := NewEmbeddedBroker("")
	require.NoError(t, broker.Start())
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func listen(t *testing.T, broker *EmbeddedBroker, topic string) *inbox {
	t.Helper()
	in := &inbox{}
	require.NoError(t, broker.Subscribe(context.Background(), topic, in.add))
	return in
}

func TestPublishUpdate(t *testing.T) {
	broker := newTestBroker(t)
	b := New(broker, &fakeHubs{}, "/boostprog/")
	in := listen(t, broker, "boostprog/boost/notification")

	ev, err := lwp.Decode([]byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x01}, lwp.PortMap{})
	require.NoError(t, err)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, b.PublishUpdate(context.Background(), hub.Update{Kind: hub.Notification, Role: hub.RoleA, Event: ev, At: at}))

	require.Eventually(t, func() bool { return len(in.all()) == 1 }, time.Second, 5*time.Millisecond)
	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(in.all()[0], &msg))
	assert.Equal(t, UpdateMessage{
		Role:  "boost",
		Kind:  "notification",
		At:    at,
		Event: "Кнопка нажата",
		Frame: "06 00 01 02 06 01",
	}, msg)
}

func TestRunPublishesLifecycle(t *testing.T) {
	broker := newTestBroker(t)
	b := New(broker, &fakeHubs{}, "bp")
	in := listen(t, broker, "bp/lpf2/connection_failed")

	updates := make(chan hub.Update, 1)
	updates <- hub.Update{Kind: hub.ConnectionFailed, Role: hub.RoleB, Err: fmt.Errorf("timeout")}
	close(updates)
	b.Run(context.Background(), updates)

	require.Eventually(t, func() bool { return len(in.all()) == 1 }, time.Second, 5*time.Millisecond)
	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(in.all()[0], &msg))
	assert.Equal(t, "timeout", msg.Error)
	assert.Empty(t, msg.Frame)
}

func TestCommandOverMQTT(t *testing.T) {
	broker := newTestBroker(t)
	hubs := &fakeHubs{}
	b := New(broker, hubs, "boostprog")
	require.NoError(t, b.Start(context.Background()))
	results := listen(t, broker, "boostprog/command/result")

	require.NoError(t, broker.Publish(context.Background(), "boostprog/command",
		[]byte(`{"id":"c1","action":"led","role":"lpf2","color":"blue"}`)))

	require.Eventually(t, func() bool { return len(results.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"led lpf2 blue"}, hubs.Calls())
	var res CommandResult
	require.NoError(t, json.Unmarshal(results.all()[0], &res))
	assert.Equal(t, CommandResult{ID: "c1", OK: true}, res)
}

func TestBadCommandReportsError(t *testing.T) {
	broker := newTestBroker(t)
	hubs := &fakeHubs{}
	b := New(broker, hubs, "boostprog")
	require.NoError(t, b.Start(context.Background()))
	results := listen(t, broker, "boostprog/command/result")

	require.NoError(t, broker.Publish(context.Background(), "boostprog/command", []byte(`{not json`)))

	require.Eventually(t, func() bool { return len(results.all()) == 1 }, time.Second, 5*time.Millisecond)
	var res CommandResult
	require.NoError(t, json.Unmarshal(results.all()[0], &res))
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.ID, "идентификатор генерируется")
	assert.Empty(t, hubs.Calls())
}

func TestExecute(t *testing.T) {
	ccw := false
	cases := []struct {
		cmd  Command
		want string
	}{
		{Command{Action: "connect"}, "connect"},
		{Command{Action: "disconnect"}, "disconnect"},
		{Command{Action: "led", Role: "boost", Color: "red"}, "led boost red"},
		{Command{Action: "motor", Role: "boost", Port: "A", Power: 50, Duration: 1000}, "motor boost A 50 1000 0"},
		{Command{Action: "motor", Role: "boost", Port: "AB", Power: 20, Duration: 300, Clockwise: &ccw}, "motors boost 20 300 1"},
		{Command{Action: "motor", Role: "lpf2", Port: "external_motor", Power: 10, Duration: 100}, "external lpf2 10 100 0"},
		{Command{Action: "motors_opposed", Role: "boost", Power: 60, Duration: 500}, "opposed boost 60 500"},
		{Command{Action: "arm", Role: "boost", Sensor: "tilt"}, "arm boost tilt"},
		{Command{Action: "disarm", Role: "lpf2", Sensor: "button"}, "disarm lpf2 button"},
		{Command{Action: "frame", Role: "boost", Frame: "05 00 01 02 02"}, "raw boost 05 00 01 02 02"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			hubs := &fakeHubs{}
			b := New(nil, hubs, "")

			require.NoError(t, b.Execute(context.Background(), tc.cmd))
			assert.Equal(t, []string{tc.want}, hubs.Calls())
		})
	}
}

func TestExecuteRejects(t *testing.T) {
	b := New(nil, &fakeHubs{}, "")
	ctx := context.Background()

	for _, cmd := range []Command{
		{Action: "led", Role: "spike", Color: "red"},
		{Action: "led", Role: "boost", Color: "plaid"},
		{Action: "motor", Role: "boost", Port: "Z"},
		{Action: "arm", Role: "boost", Sensor: "sonar"},
		{Action: "frame", Role: "boost", Frame: "zz"},
		{Action: "dance", Role: "boost"},
	} {
		assert.ErrorIs(t, b.Execute(ctx, cmd), lwp.ErrInvalidParameter, cmd.Action)
	}
}

func TestExecutePropagatesHubErrors(t *testing.T) {
	b := New(nil, &fakeHubs{err: hub.ErrNotReady}, "")

	err := b.Execute(context.Background(), Command{Action: "led", Role: "boost", Color: "red"})

	assert.ErrorIs(t, err, hub.ErrNotReady)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "boostprog/boost/connected", New(nil, nil, "").Topic("boost", "connected"))
	assert.Equal(t, "home/lego/command", New(nil, nil, "/home/lego/").Topic("command"))
}
