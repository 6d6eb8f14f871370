package automation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"BoostProg/config"
	"BoostProg/hub"
	"BoostProg/lwp"
)

// Имена поведений в каталоге
const (
	SyncColors        = "sync_colors"
	ButtonChangeLight = "button_change_light"
	ButtonChangeMotor = "button_change_motor"
	TiltChangeLED     = "tilt_change_led"
	RollerCoaster     = "roller_coaster"
	ButtonPeerColor   = "button_peer_color"
	TiltPeerColor     = "tilt_peer_color"
	MotorButtonLIFX   = "motor_button_lifx"
)

// Deps внешние зависимости поведений. Peer и Light могут отсутствовать,
// тогда соответствующие поведения не собираются.
type Deps struct {
	Commands     Commands
	Peer         ColorPeer
	Light        LightSink
	LightTimeout time.Duration
}

type builder func(cfg config.BehaviorsConfig, deps Deps) (Behavior, error)

var catalog = map[string]builder{
	SyncColors:        buildSyncColors,
	ButtonChangeLight: buildButtonLight,
	ButtonChangeMotor: buildButtonMotor,
	TiltChangeLED:     buildTiltLED,
	RollerCoaster:     buildCoaster,
	ButtonPeerColor:   buildButtonPeer,
	TiltPeerColor:     buildTiltPeer,
	MotorButtonLIFX:   buildMotorLight,
}

// Available имена всех поведений каталога
func Available() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build собирает поведение по имени из конфигурации
func Build(name string, cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	build, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: неизвестное поведение %q", lwp.ErrInvalidParameter, name)
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("automation: %s: нет команд хабов", name)
	}
	b, err := build(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("automation: %s: %w", name, err)
	}
	return b, nil
}

func role(field, value string) (hub.Role, error) {
	r, err := hub.ParseRole(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return r, nil
}

func buildSyncColors(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	source, err := role("source", cfg.SyncColors.Source)
	if err != nil {
		return nil, err
	}
	targets := make([]hub.Role, 0, len(cfg.SyncColors.Targets))
	for _, t := range cfg.SyncColors.Targets {
		target, err := role("targets", t)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return NewColorMirror(deps.Commands, source, targets...), nil
}

func buildButtonLight(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	c := cfg.ButtonLight
	source, err := role("source", c.Source)
	if err != nil {
		return nil, err
	}
	target, err := role("target", c.Target)
	if err != nil {
		return nil, err
	}
	if len(c.Colors) != 2 {
		return nil, fmt.Errorf("%w: нужно ровно два цвета, задано %d", lwp.ErrInvalidParameter, len(c.Colors))
	}
	var colors [2]lwp.Color
	for i, name := range c.Colors {
		if colors[i], err = lwp.ParseColor(name); err != nil {
			return nil, err
		}
	}
	return NewButtonToggleLED(deps.Commands, source, target, colors), nil
}

func buildButtonMotor(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	c := cfg.ButtonMotor
	source, err := role("source", c.Source)
	if err != nil {
		return nil, err
	}
	target, err := role("target", c.Target)
	if err != nil {
		return nil, err
	}
	motor, err := lwp.ParsePort(c.Motor)
	if err != nil {
		return nil, err
	}
	duration, err := config.ParseDuration("duration", c.Duration)
	if err != nil {
		return nil, err
	}
	dir := lwp.Clockwise
	if c.Clockwise != nil && !*c.Clockwise {
		dir = lwp.CounterClockwise
	}
	run := MotorRun{Motor: motor, Power: c.Power, Duration: duration, Direction: dir}
	switch motor {
	case lwp.PortInternalA, lwp.PortInternalB, lwp.PortInternalAB, lwp.PortExternalMotor:
	default:
		return nil, fmt.Errorf("%w: мотор %s", lwp.ErrInvalidParameter, motor)
	}
	return NewButtonRunMotor(deps.Commands, source, target, run), nil
}

func buildTiltLED(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	c := cfg.TiltLED
	source, err := role("source", c.Source)
	if err != nil {
		return nil, err
	}
	target, err := role("target", c.Target)
	if err != nil {
		return nil, err
	}
	colors := DefaultTiltColors()
	for name, colorName := range c.Colors {
		orientation, err := parseOrientation(name)
		if err != nil {
			return nil, err
		}
		if colors[orientation], err = lwp.ParseColor(colorName); err != nil {
			return nil, err
		}
	}
	return NewTiltLED(deps.Commands, source, target, colors), nil
}

func parseOrientation(s string) (lwp.TiltOrientation, error) {
	for o := lwp.TiltFlat; o <= lwp.TiltSide; o++ {
		if strings.EqualFold(o.String(), s) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: неизвестное положение %q", lwp.ErrInvalidParameter, s)
}

func buildCoaster(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	c := cfg.Coaster
	r, err := role("role", c.Role)
	if err != nil {
		return nil, err
	}
	leg, err := config.ParseDuration("duration", c.Duration)
	if err != nil {
		return nil, err
	}
	period, err := config.ParseDuration("period", c.Period)
	if err != nil {
		return nil, err
	}
	return NewCoaster(deps.Commands, r, c.Power, leg, period)
}

func buildButtonPeer(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	if deps.Peer == nil {
		return nil, fmt.Errorf("внешнее устройство не настроено")
	}
	source, err := role("source", cfg.PeerColor.Source)
	if err != nil {
		return nil, err
	}
	return NewPeerColorOnButton(deps.Commands, source, deps.Peer), nil
}

func buildTiltPeer(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	if deps.Peer == nil {
		return nil, fmt.Errorf("внешнее устройство не настроено")
	}
	source, err := role("source", cfg.PeerColor.Source)
	if err != nil {
		return nil, err
	}
	return NewPeerColorOnTilt(deps.Commands, source, deps.Peer), nil
}

func buildMotorLight(cfg config.BehaviorsConfig, deps Deps) (Behavior, error) {
	if deps.Light == nil {
		return nil, fmt.Errorf("лампа не настроена")
	}
	source, err := role("source", cfg.MotorLight.Source)
	if err != nil {
		return nil, err
	}
	debounce, err := config.ParseDuration("debounce", cfg.MotorLight.Debounce)
	if err != nil {
		return nil, err
	}
	return NewMotorLightToggle(deps.Commands, source, deps.Light, debounce, deps.LightTimeout), nil
}
