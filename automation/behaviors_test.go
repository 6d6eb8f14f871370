package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BoostProg/hub"
	"BoostProg/lwp"
)

var (
	colorPorts = lwp.PortMap{ColorSensor: lwp.LetterC}
	motorPorts = lwp.PortMap{ExternalMotor: lwp.LetterD}
)

func TestColorMirror(t *testing.T) {
	cmd := newFakeCommands()
	ctx := context.Background()
	b := NewColorMirror(cmd, hub.RoleA, hub.RoleA, hub.RoleB)

	require.NoError(t, b.Setup(ctx))
	require.NoError(t, b.HandleEvent(ctx, notify(t, hub.RoleA, []byte{0x06, 0x00, 0x45, 0x01, 0x09, 0x03}, colorPorts)))
	require.NoError(t, b.HandleEvent(ctx, notify(t, hub.RoleB, []byte{0x06, 0x00, 0x45, 0x01, 0x03, 0x03}, colorPorts)))
	require.NoError(t, b.Teardown(ctx))

	assert.Equal(t, []string{
		"arm boost color",
		"led boost red",
		"led lpf2 red",
		"disarm boost color",
	}, cmd.Calls())
	assert.ElementsMatch(t, []hub.Role{hub.RoleA, hub.RoleA, hub.RoleB}, b.DependsOn())
}

func TestColorMirrorNoColorIsPrecondition(t *testing.T) {
	cmd := newFakeCommands()
	b := NewColorMirror(cmd, hub.RoleA)

	err := b.HandleEvent(context.Background(), notify(t, hub.RoleA, []byte{0x05, 0x00, 0x45, 0x01, 0xff}, colorPorts))

	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Empty(t, cmd.Calls())
}

func TestColorMirrorSetupFailsBeforeAssign(t *testing.T) {
	cmd := newFakeCommands()
	cmd.fail["arm"] = lwp.ErrInvalidParameter

	err := NewColorMirror(cmd, hub.RoleA).Setup(context.Background())

	assert.ErrorIs(t, err, lwp.ErrInvalidParameter)
}

func TestButtonToggleLED(t *testing.T) {
	cmd := newFakeCommands()
	ctx := context.Background()
	b := NewButtonToggleLED(cmd, hub.RoleA, hub.RoleB, [2]lwp.Color{lwp.ColorRed, lwp.ColorBlue})

	require.NoError(t, b.Setup(ctx))
	for _, pressed := range []bool{true, false, true, false, true} {
		require.NoError(t, b.HandleEvent(ctx, notify(t, hub.RoleA, buttonFrame(pressed), lwp.PortMap{})))
	}
	require.NoError(t, b.HandleEvent(ctx, hub.Update{Kind: hub.Connected, Role: hub.RoleA}))

	assert.Equal(t, []string{
		"arm boost button",
		"led lpf2 red",
		"led lpf2 blue",
		"led lpf2 red",
	}, cmd.Calls())
}

func TestButtonRunMotor(t *testing.T) {
	cases := []struct {
		motor lwp.Port
		want  string
	}{
		{lwp.PortInternalA, "motor lpf2 A 50 1000 cw"},
		{lwp.PortInternalAB, "motors lpf2 50 1000 cw"},
		{lwp.PortExternalMotor, "external lpf2 50 1000 cw"},
	}

	for _, tc := range cases {
		t.Run(tc.motor.String(), func(t *testing.T) {
			cmd := newFakeCommands()
			b := NewButtonRunMotor(cmd, hub.RoleA, hub.RoleB, MotorRun{Motor: tc.motor, Power: 50, Duration: time.Second})

			require.NoError(t, b.HandleEvent(context.Background(), notify(t, hub.RoleA, buttonFrame(true), lwp.PortMap{})))

			assert.Equal(t, []string{tc.want}, cmd.Calls())
		})
	}
}

func TestButtonRunMotorPropagatesNotReady(t *testing.T) {
	cmd := newFakeCommands()
	cmd.fail["motor"] = hub.ErrNotReady
	b := NewButtonRunMotor(cmd, hub.RoleA, hub.RoleA, MotorRun{Motor: lwp.PortInternalB, Power: 10, Duration: time.Second})

	err := b.HandleEvent(context.Background(), notify(t, hub.RoleA, buttonFrame(true), lwp.PortMap{}))

	assert.ErrorIs(t, err, hub.ErrNotReady)
}

func TestTiltLED(t *testing.T) {
	cmd := newFakeCommands()
	ctx := context.Background()
	b := NewTiltLED(cmd, hub.RoleA, hub.RoleA, nil)

	require.NoError(t, b.Setup(ctx))
	for _, o := range []lwp.TiltOrientation{lwp.TiltFlat, lwp.TiltFlat, lwp.TiltUpsideDown, lwp.TiltSide} {
		require.NoError(t, b.HandleEvent(ctx, notify(t, hub.RoleA, tiltFrame(o), lwp.PortMap{})))
	}
	require.NoError(t, b.Teardown(ctx))

	assert.Equal(t, []string{
		"arm boost tilt",
		"led boost green",
		"led boost red",
		"led boost white",
		"disarm boost tilt",
	}, cmd.Calls())
}

func TestTiltLEDUnknownOrientation(t *testing.T) {
	cmd := newFakeCommands()
	b := NewTiltLED(cmd, hub.RoleA, hub.RoleA, map[lwp.TiltOrientation]lwp.Color{lwp.TiltFlat: lwp.ColorGreen})

	err := b.HandleEvent(context.Background(), notify(t, hub.RoleA, tiltFrame(lwp.TiltBack), lwp.PortMap{}))

	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestCoasterRidesUntilTeardown(t *testing.T) {
	cmd := newFakeCommands()
	ctx := context.Background()
	b, err := NewCoaster(cmd, hub.RoleA, 40, 10*time.Millisecond, 30*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, b.Setup(ctx))
	require.Eventually(t, func() bool { return len(cmd.Calls()) >= 4 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Teardown(ctx))

	calls := cmd.Calls()
	assert.Equal(t, "motors boost 40 10 cw", calls[0])
	assert.Equal(t, "motors boost 40 10 ccw", calls[1])

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, cmd.Calls(), len(calls), "после остановки команд нет")
}

func TestCoasterRejectsShortPeriod(t *testing.T) {
	_, err := NewCoaster(newFakeCommands(), hub.RoleA, 40, time.Second, time.Second)
	assert.ErrorIs(t, err, lwp.ErrInvalidParameter)

	_, err = NewCoaster(newFakeCommands(), hub.RoleA, 40, 0, time.Second)
	assert.ErrorIs(t, err, lwp.ErrInvalidParameter)
}

func TestCoasterTeardownWithoutSetup(t *testing.T) {
	b, err := NewCoaster(newFakeCommands(), hub.RoleA, 40, time.Second, 3*time.Second)
	require.NoError(t, err)

	assert.NoError(t, b.Teardown(context.Background()))
}

func TestPeerColorOnButtonCycles(t *testing.T) {
	cmd := newFakeCommands()
	peer := &fakePeer{}
	ctx := context.Background()
	b := NewPeerColorOnButton(cmd, hub.RoleB, peer)

	require.NoError(t, b.Setup(ctx))
	for i := 0; i < len(lwp.LEDColors); i++ {
		require.NoError(t, b.HandleEvent(ctx, notify(t, hub.RoleB, buttonFrame(true), lwp.PortMap{})))
	}

	colors := peer.Colors()
	require.Len(t, colors, len(lwp.LEDColors))
	assert.Equal(t, lwp.ColorPink, colors[0])
	assert.Equal(t, lwp.ColorPink, colors[len(colors)-1], "цикл без выключенного цвета")
	assert.NotContains(t, colors, lwp.ColorOff)
	assert.Equal(t, []string{"arm lpf2 button"}, cmd.Calls())
}

func TestPeerColorOnTilt(t *testing.T) {
	peer := &fakePeer{}
	ctx := context.Background()
	b := NewPeerColorOnTilt(newFakeCommands(), hub.RoleA, peer)

	for _, o := range []lwp.TiltOrientation{lwp.TiltStanding, lwp.TiltStanding, lwp.TiltFront} {
		require.NoError(t, b.HandleEvent(ctx, notify(t, hub.RoleA, tiltFrame(o), lwp.PortMap{})))
	}

	assert.Equal(t, []lwp.Color{lwp.ColorBlue, lwp.ColorYellow}, peer.Colors())
}

func TestMotorLightToggleDebounce(t *testing.T) {
	cmd := newFakeCommands()
	light := &fakeLight{}
	ctx := context.Background()
	b := NewMotorLightToggle(cmd, hub.RoleB, light, time.Second, 0)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	turn := notify(t, hub.RoleB, []byte{0x08, 0x00, 0x45, 0x02, 0x01, 0x00, 0x00, 0x00}, motorPorts)

	require.NoError(t, b.Setup(ctx))
	require.NoError(t, b.HandleEvent(ctx, turn))
	require.NoError(t, b.HandleEvent(ctx, turn))
	require.Eventually(t, func() bool { return light.Toggles() == 1 }, time.Second, 5*time.Millisecond)

	now = now.Add(2 * time.Second)
	require.NoError(t, b.HandleEvent(ctx, turn))
	require.Eventually(t, func() bool { return light.Toggles() == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"arm lpf2 external_motor"}, cmd.Calls())
}

func TestMotorLightToggleIgnoresSinkFailure(t *testing.T) {
	light := &fakeLight{err: errBoom}
	b := NewMotorLightToggle(newFakeCommands(), hub.RoleA, light, 0, time.Second)

	err := b.HandleEvent(context.Background(), notify(t, hub.RoleA, []byte{0x08, 0x00, 0x45, 0x02, 0x01, 0x00, 0x00, 0x00}, motorPorts))

	assert.NoError(t, err)
	require.Eventually(t, func() bool { return light.Toggles() == 1 }, time.Second, 5*time.Millisecond)
}
