package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BoostProg/config"
	"BoostProg/hub"
	"BoostProg/lwp"
)

func TestBuildEveryDefaultBehavior(t *testing.T) {
	cfg := config.Default().Behaviors
	deps := Deps{Commands: newFakeCommands(), Peer: &fakePeer{}, Light: &fakeLight{}}

	for _, name := range Available() {
		t.Run(name, func(t *testing.T) {
			b, err := Build(name, cfg, deps)
			require.NoError(t, err)
			assert.NotEmpty(t, b.DependsOn())
		})
	}
}

func TestBuildUnknown(t *testing.T) {
	_, err := Build("dance", config.Default().Behaviors, Deps{Commands: newFakeCommands()})

	assert.ErrorIs(t, err, lwp.ErrInvalidParameter)
}

func TestBuildNeedsPeripherals(t *testing.T) {
	cfg := config.Default().Behaviors
	deps := Deps{Commands: newFakeCommands()}

	for _, name := range []string{ButtonPeerColor, TiltPeerColor, MotorButtonLIFX} {
		_, err := Build(name, cfg, deps)
		assert.Error(t, err, name)
	}

	_, err := Build(SyncColors, cfg, Deps{})
	assert.Error(t, err)
}

func TestBuildValidatesParameters(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.BehaviorsConfig)
	}{
		{ButtonChangeLight, func(c *config.BehaviorsConfig) { c.ButtonLight.Colors = []string{"red"} }},
		{ButtonChangeLight, func(c *config.BehaviorsConfig) { c.ButtonLight.Colors = []string{"red", "plaid"} }},
		{ButtonChangeMotor, func(c *config.BehaviorsConfig) { c.ButtonMotor.Motor = "led" }},
		{ButtonChangeMotor, func(c *config.BehaviorsConfig) { c.ButtonMotor.Target = "spike" }},
		{TiltChangeLED, func(c *config.BehaviorsConfig) { c.TiltLED.Colors = map[string]string{"sideways": "red"} }},
		{RollerCoaster, func(c *config.BehaviorsConfig) { c.Coaster.Period = "1s" }},
		{SyncColors, func(c *config.BehaviorsConfig) { c.SyncColors.Targets = []string{"nope"} }},
	}

	for _, tc := range cases {
		cfg := config.Default().Behaviors
		tc.mutate(&cfg)
		_, err := Build(tc.name, cfg, Deps{Commands: newFakeCommands()})
		assert.Error(t, err, tc.name)
	}
}

func TestBuildTiltColorsOverride(t *testing.T) {
	cmd := newFakeCommands()
	cfg := config.Default().Behaviors
	cfg.TiltLED.Colors = map[string]string{"flat": "orange"}

	b, err := Build(TiltChangeLED, cfg, Deps{Commands: cmd})
	require.NoError(t, err)
	require.NoError(t, b.HandleEvent(context.Background(), notify(t, hub.RoleA, tiltFrame(lwp.TiltFlat), lwp.PortMap{})))

	assert.Equal(t, []string{"led boost orange"}, cmd.Calls())
}

func TestBuildButtonMotorCounterClockwise(t *testing.T) {
	cmd := newFakeCommands()
	cfg := config.Default().Behaviors
	ccw := false
	cfg.ButtonMotor.Clockwise = &ccw
	cfg.ButtonMotor.Motor = "B"

	b, err := Build(ButtonChangeMotor, cfg, Deps{Commands: cmd})
	require.NoError(t, err)
	require.NoError(t, b.HandleEvent(context.Background(), notify(t, hub.RoleA, buttonFrame(true), lwp.PortMap{})))

	assert.Equal(t, []string{"motor boost B 50 1000 ccw"}, cmd.Calls())
}

func TestRegisterBuiltBehaviorArmsSensor(t *testing.T) {
	cmd := newFakeCommands()
	r := NewRegistry()
	b, err := Build(ButtonChangeLight, config.Default().Behaviors, Deps{Commands: cmd})
	require.NoError(t, err)

	require.NoError(t, r.Register(context.Background(), ButtonChangeLight, b))
	require.NoError(t, r.Dispatch(context.Background(), notify(t, hub.RoleA, buttonFrame(true), lwp.PortMap{})))
	r.Close(context.Background())

	assert.Equal(t, []string{"arm boost button", "led lpf2 red", "disarm boost button"}, cmd.Calls())
}
