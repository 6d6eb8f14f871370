package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"BoostProg/hub"
	"BoostProg/logging"
	"BoostProg/lwp"
)

// CommandTimeout время на выполнение команды из MQTT
const CommandTimeout = 5 * time.Second

// Hubs команды хабов, доступные мосту. Реализуется hub.Controller.
type Hubs interface {
	Connect() error
	Disconnect() error
	SetLEDColor(ctx context.Context, role hub.Role, color lwp.Color) error
	RunInternalMotor(ctx context.Context, role hub.Role, which lwp.Port, power, durationMs int, dir lwp.Direction) error
	RunInternalMotors(ctx context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error
	RunInternalMotorsOpposed(ctx context.Context, role hub.Role, power, durationMs int) error
	RunExternalMotor(ctx context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error
	ArmSensor(ctx context.Context, role hub.Role, sensor lwp.Sensor) error
	DisarmSensor(ctx context.Context, role hub.Role, sensor lwp.Sensor) error
	SendRaw(ctx context.Context, role hub.Role, data []byte) error
}

// UpdateMessage событие сессии в MQTT
type UpdateMessage struct {
	Role  string    `json:"role"`
	Kind  string    `json:"kind"`
	At    time.Time `json:"at"`
	Event string    `json:"event,omitempty"`
	Frame string    `json:"frame,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Command команда из топика <prefix>/command
type Command struct {
	ID        string `json:"id,omitempty"`
	Action    string `json:"action"` // connect, disconnect, led, motor, motors_opposed, arm, disarm, frame
	Role      string `json:"role,omitempty"`
	Color     string `json:"color,omitempty"`
	Port      string `json:"port,omitempty"` // A, B, AB, external_motor
	Sensor    string `json:"sensor,omitempty"`
	Power     int    `json:"power,omitempty"`
	Duration  int    `json:"duration_ms,omitempty"`
	Clockwise *bool  `json:"clockwise,omitempty"`
	Frame     string `json:"frame,omitempty"` // hex
}

// CommandResult ответ в топик <prefix>/command/result
type CommandResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Bridge связывает сессию с MQTT
type Bridge struct {
	transport Transport
	hubs      Hubs
	prefix    string
	log       *logrus.Entry
}

// New создает мост. prefix - корень всех топиков.
func New(transport Transport, hubs Hubs, prefix string) *Bridge {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "boostprog"
	}
	return &Bridge{
		transport: transport,
		hubs:      hubs,
		prefix:    prefix,
		log:       logging.ForComponent("bridge"),
	}
}

// Topic полный топик для относительного пути
func (b *Bridge) Topic(parts ...string) string {
	return b.prefix + "/" + strings.Join(parts, "/")
}

// Start подписывается на топик команд
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.transport.Subscribe(ctx, b.Topic("command"), b.handleCommand); err != nil {
		return fmt.Errorf("bridge: подписка на команды: %w", err)
	}
	b.log.Infof("Мост MQTT слушает %s", b.Topic("command"))
	return nil
}

// Run публикует события сессии до закрытия канала или отмены контекста
func (b *Bridge) Run(ctx context.Context, updates <-chan hub.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := b.PublishUpdate(ctx, u); err != nil {
				b.log.Warnf("Не удалось опубликовать событие: %v", err)
			}
		}
	}
}

// PublishUpdate публикует событие в <prefix>/<role>/<kind>
func (b *Bridge) PublishUpdate(ctx context.Context, u hub.Update) error {
	msg := UpdateMessage{Role: u.Role.String(), Kind: u.Kind.String(), At: u.At}
	if u.Event != nil {
		msg.Event = lwp.Describe(u.Event)
		msg.Frame = lwp.BytesToHex(u.Event.Raw())
	}
	if u.Err != nil {
		msg.Error = u.Err.Error()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.transport.Publish(ctx, b.Topic(msg.Role, msg.Kind), payload)
}

func (b *Bridge) handleCommand(payload []byte) {
	var cmd Command
	result := CommandResult{}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		result.ID = uuid.NewString()
		result.Error = fmt.Sprintf("неверная команда: %v", err)
	} else {
		if cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}
		result.ID = cmd.ID
		ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
		err := b.Execute(ctx, cmd)
		cancel()
		if err != nil {
			result.Error = err.Error()
		} else {
			result.OK = true
		}
	}

	if result.Error != "" {
		b.log.Warnf("Команда %s не выполнена: %s", result.ID, result.Error)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := b.transport.Publish(context.Background(), b.Topic("command", "result"), out); err != nil {
		b.log.Warnf("Не удалось опубликовать результат команды: %v", err)
	}
}

// Execute выполняет команду
func (b *Bridge) Execute(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case "connect":
		return b.hubs.Connect()
	case "disconnect":
		return b.hubs.Disconnect()
	}

	role, err := hub.ParseRole(cmd.Role)
	if err != nil {
		return fmt.Errorf("%w: %v", lwp.ErrInvalidParameter, err)
	}
	dir := lwp.Clockwise
	if cmd.Clockwise != nil && !*cmd.Clockwise {
		dir = lwp.CounterClockwise
	}

	switch cmd.Action {
	case "led":
		color, err := lwp.ParseColor(cmd.Color)
		if err != nil {
			return err
		}
		return b.hubs.SetLEDColor(ctx, role, color)
	case "motor":
		port, err := lwp.ParsePort(cmd.Port)
		if err != nil {
			return err
		}
		switch port {
		case lwp.PortInternalAB:
			return b.hubs.RunInternalMotors(ctx, role, cmd.Power, cmd.Duration, dir)
		case lwp.PortExternalMotor:
			return b.hubs.RunExternalMotor(ctx, role, cmd.Power, cmd.Duration, dir)
		}
		return b.hubs.RunInternalMotor(ctx, role, port, cmd.Power, cmd.Duration, dir)
	case "motors_opposed":
		return b.hubs.RunInternalMotorsOpposed(ctx, role, cmd.Power, cmd.Duration)
	case "arm", "disarm":
		sensor, err := lwp.ParseSensor(cmd.Sensor)
		if err != nil {
			return err
		}
		if cmd.Action == "arm" {
			return b.hubs.ArmSensor(ctx, role, sensor)
		}
		return b.hubs.DisarmSensor(ctx, role, sensor)
	case "frame":
		data, err := lwp.HexToBytes(cmd.Frame)
		if err != nil {
			return err
		}
		return b.hubs.SendRaw(ctx, role, data)
	}
	return fmt.Errorf("%w: неизвестное действие %q", lwp.ErrInvalidParameter, cmd.Action)
}
