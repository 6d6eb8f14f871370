// Package lwp реализует кодек протокола LEGO Wireless Protocol для хабов Boost и LPF2:
// сборку командных кадров и разбор входящих уведомлений. Пакет не выполняет ввод-вывод
// и не хранит состояние.
package lwp

import (
	"errors"
	"fmt"
)

// Ошибки кодека
var (
	// ErrInvalidParameter параметры команды вне контракта (ошибка вызывающего)
	ErrInvalidParameter = errors.New("lwp: недопустимый параметр")
	// ErrUnrecognizedFrame тип кадра не соответствует ни одному известному уведомлению
	ErrUnrecognizedFrame = errors.New("lwp: нераспознанный кадр")
	// ErrMalformedFrame кадр короче минимальной длины для своего типа или
	// заявленная длина не совпадает с фактической
	ErrMalformedFrame = errors.New("lwp: поврежденный кадр")
)

// Типы сообщений (байт со смещением 2)
const (
	MSG_HUB_PROPERTIES       = 0x01
	MSG_HUB_ATTACHED_IO      = 0x04
	MSG_GENERIC_ERROR        = 0x05
	MSG_PORT_INPUT_FORMAT    = 0x41
	MSG_PORT_VALUE_SINGLE    = 0x45
	MSG_PORT_OUTPUT_COMMAND  = 0x81
	MSG_PORT_OUTPUT_FEEDBACK = 0x82
)

// Байты портов
const (
	PORT_BYTE_C           = 0x01
	PORT_BYTE_D           = 0x02
	PORT_BYTE_LED         = 0x32
	PORT_BYTE_INTERNAL_A  = 0x37
	PORT_BYTE_INTERNAL_B  = 0x38
	PORT_BYTE_INTERNAL_AB = 0x39
	PORT_BYTE_TILT        = 0x3a
)

// Режимы уведомлений датчиков
const (
	MODE_MOTOR = 0x02
	MODE_TILT  = 0x02
	MODE_COLOR = 0x08
)

// Свойство хаба "кнопка"
const (
	HUB_PROPERTY_BUTTON = 0x02

	PROPERTY_OP_ENABLE_UPDATES  = 0x02
	PROPERTY_OP_DISABLE_UPDATES = 0x03
	PROPERTY_OP_UPDATE          = 0x06
)

// MaxDurationMs максимальное время, помещающееся в 16-битное поле
const MaxDurationMs = 0xFFFF

// Шаблоны кадров. Массивы копируются при присваивании, поэтому каждый вызов
// получает собственный буфер и шаблон никогда не изменяется.
var (
	motorRunTemplate = [12]byte{0x0c, 0x00, MSG_PORT_OUTPUT_COMMAND, 0x00, 0x11, 0x09,
		0x00, 0x00, 0x00, 0x64, 0x7f, 0x03}
	motorsOpposedTemplate = [13]byte{0x0d, 0x00, MSG_PORT_OUTPUT_COMMAND, PORT_BYTE_INTERNAL_AB, 0x11, 0x0a,
		0x00, 0x00, 0x00, 0x00, 0x64, 0x7f, 0x03}
	notificationTemplate = [10]byte{0x0a, 0x00, MSG_PORT_INPUT_FORMAT, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00}
	buttonTemplate = [5]byte{0x05, 0x00, MSG_HUB_PROPERTIES, HUB_PROPERTY_BUTTON, 0x00}
)

// Frame неизменяемый командный кадр. Первый байт содержит общую длину кадра.
type Frame struct {
	data []byte
}

// frameOf оформляет буфер как кадр и проставляет байт длины
func frameOf(b []byte) Frame {
	b[0] = byte(len(b))
	return Frame{data: b}
}

// RawFrame создает кадр из готовых байтов (ручная отправка).
// Объявленная длина должна совпадать с фактической.
func RawFrame(b []byte) (Frame, error) {
	if len(b) < 3 {
		return Frame{}, fmt.Errorf("%w: кадр короче 3 байт", ErrInvalidParameter)
	}
	if int(b[0]) != len(b) {
		return Frame{}, fmt.Errorf("%w: объявленная длина %d, фактическая %d", ErrInvalidParameter, b[0], len(b))
	}
	data := make([]byte, len(b))
	copy(data, b)
	return Frame{data: data}, nil
}

// Bytes возвращает копию байтов кадра
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

// Len возвращает фактическую длину кадра
func (f Frame) Len() int {
	return len(f.data)
}

// DeclaredLength возвращает значение байта длины
func (f Frame) DeclaredLength() int {
	if len(f.data) == 0 {
		return 0
	}
	return int(f.data[0])
}

// Type возвращает тип сообщения
func (f Frame) Type() byte {
	if len(f.data) < 3 {
		return 0
	}
	return f.data[2]
}

// IsZero сообщает, что кадр не был построен
func (f Frame) IsZero() bool {
	return len(f.data) == 0
}

func (f Frame) String() string {
	return BytesToHex(f.data)
}

// Direction направление вращения мотора
type Direction int

const (
	Clockwise Direction = iota
	CounterClockwise
)

func (d Direction) String() string {
	if d == CounterClockwise {
		return "против часовой"
	}
	return "по часовой"
}

// PowerByte кодирует мощность с учетом направления: по часовой - как есть,
// против часовой - дополнение до 255 (не дополнительный код).
func PowerByte(power int, dir Direction) byte {
	if dir == CounterClockwise {
		return byte(255 - power)
	}
	return byte(power)
}

// Action команда, которую умеет кодировать Encode
type Action interface {
	encode(ports PortMap) (Frame, error)
}

// RunMotor запуск одного мотора (или пары A+B через PortInternalAB) на время
type RunMotor struct {
	Port       Port
	Power      int
	DurationMs int
	Direction  Direction
}

// RunMotorsOpposed встречное вращение внутренних моторов от одного значения мощности
type RunMotorsOpposed struct {
	Power      int
	DurationMs int
}

// SetNotifications включение/выключение уведомлений датчика
type SetNotifications struct {
	Sensor  Sensor
	Enabled bool
}

// SetLEDColor установка цвета встроенного светодиода
type SetLEDColor struct {
	Color Color
}

// Encode кодирует команду в кадр для хаба с заданной таблицей портов
func Encode(a Action, ports PortMap) (Frame, error) {
	if a == nil {
		return Frame{}, fmt.Errorf("%w: пустая команда", ErrInvalidParameter)
	}
	return a.encode(ports)
}

func (c RunMotor) encode(ports PortMap) (Frame, error) {
	switch c.Port {
	case PortC, PortD, PortInternalA, PortInternalB, PortInternalAB, PortExternalMotor:
	default:
		return Frame{}, fmt.Errorf("%w: порт %s не является портом мотора", ErrInvalidParameter, c.Port)
	}
	portByte, err := ports.Resolve(c.Port)
	if err != nil {
		return Frame{}, err
	}
	if err := checkPower(c.Power); err != nil {
		return Frame{}, err
	}
	lo, hi, err := timeBytes(c.DurationMs)
	if err != nil {
		return Frame{}, err
	}

	b := motorRunTemplate
	b[3] = portByte
	b[6] = lo
	b[7] = hi
	b[8] = PowerByte(c.Power, c.Direction)
	return frameOf(b[:]), nil
}

func (c RunMotorsOpposed) encode(PortMap) (Frame, error) {
	if err := checkPower(c.Power); err != nil {
		return Frame{}, err
	}
	lo, hi, err := timeBytes(c.DurationMs)
	if err != nil {
		return Frame{}, err
	}

	b := motorsOpposedTemplate
	b[6] = lo
	b[7] = hi
	b[8] = PowerByte(c.Power, Clockwise)
	b[9] = PowerByte(c.Power, CounterClockwise)
	return frameOf(b[:]), nil
}

func (c SetNotifications) encode(ports PortMap) (Frame, error) {
	if c.Sensor == SensorButton {
		b := buttonTemplate
		b[4] = PROPERTY_OP_DISABLE_UPDATES
		if c.Enabled {
			b[4] = PROPERTY_OP_ENABLE_UPDATES
		}
		return frameOf(b[:]), nil
	}

	port, mode, ok := sensorTarget(c.Sensor)
	if !ok {
		return Frame{}, fmt.Errorf("%w: неизвестный датчик %d", ErrInvalidParameter, c.Sensor)
	}
	portByte, err := ports.Resolve(port)
	if err != nil {
		return Frame{}, err
	}

	b := notificationTemplate
	b[3] = portByte
	b[4] = mode
	if c.Enabled {
		b[9] = 0x01
	}
	return frameOf(b[:]), nil
}

func (c SetLEDColor) encode(PortMap) (Frame, error) {
	tpl, ok := ledColorFrames[c.Color]
	if !ok {
		return Frame{}, fmt.Errorf("%w: цвет 0x%02x не поддерживается светодиодом", ErrInvalidParameter, byte(c.Color))
	}
	b := tpl
	return frameOf(b[:]), nil
}

// sensorTarget возвращает логический порт и режим для датчика
func sensorTarget(s Sensor) (Port, byte, bool) {
	switch s {
	case SensorColor:
		return PortColorSensor, MODE_COLOR, true
	case SensorExternalMotor:
		return PortExternalMotor, MODE_MOTOR, true
	case SensorInternalMotorA:
		return PortInternalA, MODE_MOTOR, true
	case SensorInternalMotorB:
		return PortInternalB, MODE_MOTOR, true
	case SensorTilt:
		return PortTilt, MODE_TILT, true
	}
	return 0, 0, false
}

func checkPower(power int) error {
	if power < 0 || power > 100 {
		return fmt.Errorf("%w: мощность %d вне диапазона [0,100]", ErrInvalidParameter, power)
	}
	return nil
}

// timeBytes кодирует длительность в два байта little-endian
func timeBytes(durationMs int) (byte, byte, error) {
	if durationMs < 0 {
		return 0, 0, fmt.Errorf("%w: отрицательная длительность %d", ErrInvalidParameter, durationMs)
	}
	if durationMs > MaxDurationMs {
		return 0, 0, fmt.Errorf("%w: длительность %d мс не помещается в 16 бит", ErrInvalidParameter, durationMs)
	}
	return byte(durationMs & 0xFF), byte((durationMs >> 8) & 0xFF), nil
}
