package lwp

import (
	"encoding/binary"
	"fmt"
)

// Минимальные длины уведомлений по типу сообщения. Для свойств хаба это
// длина до байта операции, значение кнопки проверяется отдельно.
var minFrameLength = map[byte]int{
	MSG_HUB_PROPERTIES:       5,
	MSG_HUB_ATTACHED_IO:      5,
	MSG_GENERIC_ERROR:        5,
	MSG_PORT_VALUE_SINGLE:    5,
	MSG_PORT_OUTPUT_FEEDBACK: 5,
}

// События подключения устройства к порту
const (
	IO_EVENT_DETACHED         = 0x00
	IO_EVENT_ATTACHED         = 0x01
	IO_EVENT_ATTACHED_VIRTUAL = 0x02
)

// Event разобранное уведомление хаба. Набор вариантов закрыт: реализации есть
// только в этом пакете, потребители разбирают их через type switch.
type Event interface {
	// Raw возвращает копию исходного кадра для диагностики
	Raw() []byte
	isEvent()
}

type rawFrame struct {
	raw []byte
}

func (r rawFrame) Raw() []byte {
	out := make([]byte, len(r.raw))
	copy(out, r.raw)
	return out
}

func (rawFrame) isEvent() {}

// ButtonPressed изменение состояния кнопки хаба
type ButtonPressed struct {
	rawFrame
	Pressed bool
}

// ColorSensorReading показание датчика цвета
type ColorSensorReading struct {
	rawFrame
	Port     Port
	Color    Color
	Distance int // -1, если в кадре нет расстояния
}

// TiltOrientation положение хаба по встроенному датчику наклона
type TiltOrientation byte

const (
	TiltFlat TiltOrientation = iota
	TiltStanding
	TiltUpsideDown
	TiltFront
	TiltBack
	TiltSide
)

func (o TiltOrientation) String() string {
	switch o {
	case TiltFlat:
		return "flat"
	case TiltStanding:
		return "standing"
	case TiltUpsideDown:
		return "upside_down"
	case TiltFront:
		return "front"
	case TiltBack:
		return "back"
	case TiltSide:
		return "side"
	}
	return fmt.Sprintf("tilt(%d)", byte(o))
}

// TiltReading показание датчика наклона
type TiltReading struct {
	rawFrame
	Orientation TiltOrientation
	Axes        []int8
}

// ExternalMotorReading показание датчика внешнего мотора
type ExternalMotorReading struct {
	rawFrame
	Port  Port
	Value []byte
}

// InternalMotorReading показание датчика встроенного мотора
type InternalMotorReading struct {
	rawFrame
	Port  Port
	Value []byte
}

// PortValue значение порта, для которого нет специального разбора
type PortValue struct {
	rawFrame
	PortID byte
	Value  []byte
}

// PortConnected к порту подключено известное устройство
type PortConnected struct {
	rawFrame
	PortID byte
	Port   Port
	Device DeviceType
}

// PortDisconnected устройство отключено от порта
type PortDisconnected struct {
	rawFrame
	PortID byte
	Port   Port
}

// UnrecognizedAttachment к порту подключено устройство неизвестного типа
type UnrecognizedAttachment struct {
	rawFrame
	PortID byte
	Device DeviceType
}

// CommandFeedback обратная связь по выполнению команды порта
type CommandFeedback struct {
	rawFrame
	PortID byte
	Status byte
}

// HubError общая ошибка, сообщенная хабом
type HubError struct {
	rawFrame
	Command byte
	Code    byte
}

// Decode разбирает входящий кадр. Таблица портов нужна, чтобы отличить
// датчик цвета от внешнего мотора на портах C/D.
func Decode(data []byte, ports PortMap) (Event, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: длина %d меньше заголовка", ErrMalformedFrame, len(data))
	}

	msgType := data[2]
	minLen, known := minFrameLength[msgType]
	if !known {
		return nil, fmt.Errorf("%w: тип сообщения 0x%02x", ErrUnrecognizedFrame, msgType)
	}
	if len(data) < minLen {
		return nil, fmt.Errorf("%w: тип 0x%02x требует %d байт, получено %d", ErrMalformedFrame, msgType, minLen, len(data))
	}
	// однобайтовая длина, кадры длиннее 127 байт хабы Boost не шлют
	if int(data[0]) != len(data) {
		return nil, fmt.Errorf("%w: заявлено %d байт, получено %d", ErrMalformedFrame, data[0], len(data))
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	base := rawFrame{raw: raw}

	switch msgType {
	case MSG_HUB_PROPERTIES:
		return decodeHubProperty(base)
	case MSG_HUB_ATTACHED_IO:
		return decodeAttachedIO(base)
	case MSG_PORT_VALUE_SINGLE:
		return decodePortValue(base, ports), nil
	case MSG_PORT_OUTPUT_FEEDBACK:
		return CommandFeedback{rawFrame: base, PortID: raw[3], Status: raw[4]}, nil
	case MSG_GENERIC_ERROR:
		return HubError{rawFrame: base, Command: raw[3], Code: raw[4]}, nil
	}
	return nil, fmt.Errorf("%w: тип сообщения 0x%02x", ErrUnrecognizedFrame, msgType)
}

// decodeHubProperty [len, hub, 0x01, property, operation, value...].
// Команды к хабу (включение уведомлений кнопки) приходят с другой
// операцией и не считаются битыми.
func decodeHubProperty(base rawFrame) (Event, error) {
	raw := base.raw
	if raw[3] != HUB_PROPERTY_BUTTON || raw[4] != PROPERTY_OP_UPDATE {
		return nil, fmt.Errorf("%w: свойство 0x%02x, операция 0x%02x", ErrUnrecognizedFrame, raw[3], raw[4])
	}
	if len(raw) < 6 {
		return nil, fmt.Errorf("%w: нет значения кнопки", ErrMalformedFrame)
	}
	return ButtonPressed{rawFrame: base, Pressed: raw[5] == 0x01}, nil
}

// decodeAttachedIO [len, hub, 0x04, port, event, typeLo, typeHi, ...]
func decodeAttachedIO(base rawFrame) (Event, error) {
	raw := base.raw
	portID := raw[3]

	switch raw[4] {
	case IO_EVENT_DETACHED:
		return PortDisconnected{rawFrame: base, PortID: portID, Port: physicalPort(portID)}, nil
	case IO_EVENT_ATTACHED, IO_EVENT_ATTACHED_VIRTUAL:
		if len(raw) < 7 {
			return nil, fmt.Errorf("%w: уведомление о подключении без типа устройства", ErrMalformedFrame)
		}
		deviceType := DeviceType(binary.LittleEndian.Uint16(raw[5:7]))
		port, ok := attachedPort(deviceType, portID)
		if !ok {
			return UnrecognizedAttachment{rawFrame: base, PortID: portID, Device: deviceType}, nil
		}
		return PortConnected{rawFrame: base, PortID: portID, Port: port, Device: deviceType}, nil
	}
	return nil, fmt.Errorf("%w: событие порта 0x%02x", ErrUnrecognizedFrame, raw[4])
}

// decodePortValue [len, hub, 0x45, port, value...]
func decodePortValue(base rawFrame, ports PortMap) Event {
	raw := base.raw
	portID := raw[3]
	value := raw[4:]

	switch portID {
	case PORT_BYTE_TILT:
		reading := TiltReading{rawFrame: base, Orientation: TiltOrientation(value[0])}
		if len(value) > 1 {
			reading.Axes = make([]int8, len(value))
			for i, b := range value {
				reading.Axes[i] = int8(b)
			}
		}
		return reading
	case PORT_BYTE_INTERNAL_A, PORT_BYTE_INTERNAL_B, PORT_BYTE_INTERNAL_AB:
		return InternalMotorReading{rawFrame: base, Port: physicalPort(portID), Value: value}
	}

	if b, err := ports.Resolve(PortColorSensor); err == nil && b == portID {
		reading := ColorSensorReading{rawFrame: base, Port: physicalPort(portID), Color: Color(value[0]), Distance: -1}
		if len(value) > 1 {
			reading.Distance = int(value[1])
		}
		return reading
	}
	if b, err := ports.Resolve(PortExternalMotor); err == nil && b == portID {
		return ExternalMotorReading{rawFrame: base, Port: physicalPort(portID), Value: value}
	}
	return PortValue{rawFrame: base, PortID: portID, Value: value}
}

// Describe возвращает человекочитаемое описание события для журнала
func Describe(ev Event) string {
	switch e := ev.(type) {
	case ButtonPressed:
		if e.Pressed {
			return "Кнопка нажата"
		}
		return "Кнопка отпущена"
	case ColorSensorReading:
		return fmt.Sprintf("Датчик цвета (порт %s): %s", e.Port, e.Color)
	case TiltReading:
		return fmt.Sprintf("Наклон: %s %v", e.Orientation, e.Axes)
	case ExternalMotorReading:
		return fmt.Sprintf("Внешний мотор (порт %s): %s", e.Port, BytesToHex(e.Value))
	case InternalMotorReading:
		return fmt.Sprintf("Встроенный мотор %s: %s", e.Port, BytesToHex(e.Value))
	case PortValue:
		return fmt.Sprintf("Значение порта 0x%02x: %s", e.PortID, BytesToHex(e.Value))
	case PortConnected:
		return fmt.Sprintf("Подключено к порту 0x%02x: %s", e.PortID, DeviceTypeName(e.Device))
	case PortDisconnected:
		return fmt.Sprintf("Отключено от порта 0x%02x", e.PortID)
	case UnrecognizedAttachment:
		return fmt.Sprintf("Неизвестное устройство 0x%04x на порту 0x%02x", uint16(e.Device), e.PortID)
	case CommandFeedback:
		return fmt.Sprintf("Обратная связь порта 0x%02x: 0x%02x", e.PortID, e.Status)
	case HubError:
		return fmt.Sprintf("Ошибка хаба: команда 0x%02x, код 0x%02x", e.Command, e.Code)
	}
	return fmt.Sprintf("Событие %T", ev)
}
