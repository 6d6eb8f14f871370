package lwp

import (
	"fmt"
	"strings"
)

// Port логическая точка подключения на хабе
type Port int

const (
	PortC Port = iota + 1
	PortD
	PortInternalA
	PortInternalB
	PortInternalAB
	PortTilt
	PortButton
	PortLED
	// Логические порты, требующие назначения буквы C/D
	PortColorSensor
	PortExternalMotor
)

func (p Port) String() string {
	switch p {
	case PortC:
		return "C"
	case PortD:
		return "D"
	case PortInternalA:
		return "A"
	case PortInternalB:
		return "B"
	case PortInternalAB:
		return "AB"
	case PortTilt:
		return "tilt"
	case PortButton:
		return "button"
	case PortLED:
		return "led"
	case PortColorSensor:
		return "color_sensor"
	case PortExternalMotor:
		return "external_motor"
	default:
		return fmt.Sprintf("port(%d)", int(p))
	}
}

// IsAssignable сообщает, что порт назначается пользователем
func (p Port) IsAssignable() bool {
	return p == PortColorSensor || p == PortExternalMotor
}

// ParsePort разбирает имя порта (как его печатает String)
func ParsePort(s string) (Port, error) {
	for p := PortC; p <= PortExternalMotor; p++ {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: неизвестный порт %q", ErrInvalidParameter, s)
}

// PortLetter физическая буква внешнего порта
type PortLetter byte

const (
	LetterNone PortLetter = 0
	LetterC    PortLetter = 'C'
	LetterD    PortLetter = 'D'
)

func (l PortLetter) String() string {
	if l == LetterNone {
		return ""
	}
	return string(rune(l))
}

// ParseLetter разбирает букву порта ("C", "d", ...)
func ParseLetter(s string) (PortLetter, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C":
		return LetterC, nil
	case "D":
		return LetterD, nil
	}
	return LetterNone, fmt.Errorf("%w: буква порта %q (ожидается C или D)", ErrInvalidParameter, s)
}

func (l PortLetter) portByte() (byte, bool) {
	switch l {
	case LetterC:
		return PORT_BYTE_C, true
	case LetterD:
		return PORT_BYTE_D, true
	}
	return 0, false
}

// PortMap назначение логических портов физическим буквам для одного хаба.
// Значение неизменяемое: With возвращает копию.
type PortMap struct {
	ColorSensor   PortLetter
	ExternalMotor PortLetter
}

// With возвращает копию таблицы с назначенным портом
func (m PortMap) With(port Port, letter PortLetter) (PortMap, error) {
	if _, ok := letter.portByte(); !ok {
		return m, fmt.Errorf("%w: буква порта %q", ErrInvalidParameter, letter.String())
	}
	switch port {
	case PortColorSensor:
		m.ColorSensor = letter
	case PortExternalMotor:
		m.ExternalMotor = letter
	default:
		return m, fmt.Errorf("%w: порт %s не назначается", ErrInvalidParameter, port)
	}
	return m, nil
}

// Letter возвращает букву, назначенную логическому порту
func (m PortMap) Letter(port Port) PortLetter {
	switch port {
	case PortColorSensor:
		return m.ColorSensor
	case PortExternalMotor:
		return m.ExternalMotor
	}
	return LetterNone
}

// Resolve возвращает байт порта для кадра
func (m PortMap) Resolve(port Port) (byte, error) {
	switch port {
	case PortC:
		return PORT_BYTE_C, nil
	case PortD:
		return PORT_BYTE_D, nil
	case PortInternalA:
		return PORT_BYTE_INTERNAL_A, nil
	case PortInternalB:
		return PORT_BYTE_INTERNAL_B, nil
	case PortInternalAB:
		return PORT_BYTE_INTERNAL_AB, nil
	case PortTilt:
		return PORT_BYTE_TILT, nil
	case PortLED:
		return PORT_BYTE_LED, nil
	case PortColorSensor, PortExternalMotor:
		b, ok := m.Letter(port).portByte()
		if !ok {
			return 0, fmt.Errorf("%w: порт %s не назначен", ErrInvalidParameter, port)
		}
		return b, nil
	}
	return 0, fmt.Errorf("%w: порт %s не адресуется байтом", ErrInvalidParameter, port)
}

// physicalPort возвращает логический порт для байта из входящего кадра
func physicalPort(b byte) Port {
	switch b {
	case PORT_BYTE_C:
		return PortC
	case PORT_BYTE_D:
		return PortD
	case PORT_BYTE_INTERNAL_A:
		return PortInternalA
	case PORT_BYTE_INTERNAL_B:
		return PortInternalB
	case PORT_BYTE_INTERNAL_AB:
		return PortInternalAB
	case PORT_BYTE_TILT:
		return PortTilt
	case PORT_BYTE_LED:
		return PortLED
	}
	return 0
}

// Sensor датчик, уведомления которого можно включить
type Sensor int

const (
	SensorColor Sensor = iota + 1
	SensorExternalMotor
	SensorInternalMotorA
	SensorInternalMotorB
	SensorTilt
	SensorButton
)

var sensorNames = map[Sensor]string{
	SensorColor:          "color",
	SensorExternalMotor:  "external_motor",
	SensorInternalMotorA: "internal_motor_a",
	SensorInternalMotorB: "internal_motor_b",
	SensorTilt:           "tilt",
	SensorButton:         "button",
}

func (s Sensor) String() string {
	if name, ok := sensorNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sensor(%d)", int(s))
}

// ParseSensor разбирает имя датчика
func ParseSensor(s string) (Sensor, error) {
	for sensor, name := range sensorNames {
		if strings.EqualFold(name, s) {
			return sensor, nil
		}
	}
	return 0, fmt.Errorf("%w: неизвестный датчик %q", ErrInvalidParameter, s)
}

// DeviceType код типа устройства из уведомления о подключении
type DeviceType uint16

// Типы устройств LPF2
const (
	DEVICE_TYPE_MOTOR          DeviceType = 0x01
	DEVICE_TYPE_VOLTAGE        DeviceType = 0x14
	DEVICE_TYPE_CURRENT        DeviceType = 0x15
	DEVICE_TYPE_PIEZO_TONE     DeviceType = 0x16
	DEVICE_TYPE_RGB_LIGHT      DeviceType = 0x17
	DEVICE_TYPE_TILT_SENSOR    DeviceType = 0x22
	DEVICE_TYPE_MOTION_SENSOR  DeviceType = 0x23
	DEVICE_TYPE_COLOR_DISTANCE DeviceType = 0x25
	DEVICE_TYPE_EXTERNAL_MOTOR DeviceType = 0x26
	DEVICE_TYPE_INTERNAL_MOTOR DeviceType = 0x27
	DEVICE_TYPE_INTERNAL_TILT  DeviceType = 0x28
)

// DeviceTypeName возвращает имя типа устройства
func DeviceTypeName(deviceType DeviceType) string {
	switch deviceType {
	case DEVICE_TYPE_MOTOR:
		return "Мотор"
	case DEVICE_TYPE_VOLTAGE:
		return "Датчик напряжения"
	case DEVICE_TYPE_CURRENT:
		return "Датчик тока"
	case DEVICE_TYPE_PIEZO_TONE:
		return "Пищалка"
	case DEVICE_TYPE_RGB_LIGHT:
		return "RGB светодиод"
	case DEVICE_TYPE_TILT_SENSOR:
		return "Датчик наклона"
	case DEVICE_TYPE_MOTION_SENSOR:
		return "Датчик расстояния"
	case DEVICE_TYPE_COLOR_DISTANCE:
		return "Датчик цвета и расстояния"
	case DEVICE_TYPE_EXTERNAL_MOTOR:
		return "Внешний мотор"
	case DEVICE_TYPE_INTERNAL_MOTOR:
		return "Встроенный мотор"
	case DEVICE_TYPE_INTERNAL_TILT:
		return "Встроенный датчик наклона"
	default:
		return fmt.Sprintf("Неизвестное (0x%02x)", uint16(deviceType))
	}
}

// attachedPort сопоставляет тип подключенного устройства логическому порту.
// Второе значение false для неизвестных типов.
func attachedPort(deviceType DeviceType, portByte byte) (Port, bool) {
	switch deviceType {
	case DEVICE_TYPE_COLOR_DISTANCE:
		return PortColorSensor, true
	case DEVICE_TYPE_EXTERNAL_MOTOR, DEVICE_TYPE_MOTOR:
		return PortExternalMotor, true
	case DEVICE_TYPE_INTERNAL_MOTOR:
		if p := physicalPort(portByte); p != 0 {
			return p, true
		}
		return PortInternalAB, true
	case DEVICE_TYPE_INTERNAL_TILT, DEVICE_TYPE_TILT_SENSOR:
		return PortTilt, true
	case DEVICE_TYPE_RGB_LIGHT:
		return PortLED, true
	}
	return 0, false
}

// Color индекс цвета LEGO (датчик цвета и светодиод)
type Color byte

const (
	ColorBlack     Color = 0x00
	ColorPink      Color = 0x01
	ColorPurple    Color = 0x02
	ColorBlue      Color = 0x03
	ColorLightBlue Color = 0x04
	ColorCyan      Color = 0x05
	ColorGreen     Color = 0x06
	ColorYellow    Color = 0x07
	ColorOrange    Color = 0x08
	ColorRed       Color = 0x09
	ColorWhite     Color = 0x0a
	ColorNone      Color = 0xff

	// ColorOff для светодиода черный означает "выключен"
	ColorOff = ColorBlack
)

var colorNames = map[Color]string{
	ColorBlack:     "black",
	ColorPink:      "pink",
	ColorPurple:    "purple",
	ColorBlue:      "blue",
	ColorLightBlue: "light_blue",
	ColorCyan:      "cyan",
	ColorGreen:     "green",
	ColorYellow:    "yellow",
	ColorOrange:    "orange",
	ColorRed:       "red",
	ColorWhite:     "white",
	ColorNone:      "none",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("color(0x%02x)", byte(c))
}

// ParseColor разбирает имя цвета
func ParseColor(s string) (Color, error) {
	for c, name := range colorNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	return ColorNone, fmt.Errorf("%w: неизвестный цвет %q", ErrInvalidParameter, s)
}

// LEDColors цвета, доступные встроенному светодиоду, в порядке индексов
var LEDColors = []Color{
	ColorOff, ColorPink, ColorPurple, ColorBlue, ColorLightBlue, ColorCyan,
	ColorGreen, ColorYellow, ColorOrange, ColorRed, ColorWhite,
}

// ledColorFrames готовые кадры установки цвета светодиода
var ledColorFrames = buildLEDColorFrames()

func buildLEDColorFrames() map[Color][8]byte {
	frames := make(map[Color][8]byte, len(LEDColors))
	for _, c := range LEDColors {
		frames[c] = [8]byte{0x08, 0x00, MSG_PORT_OUTPUT_COMMAND, PORT_BYTE_LED, 0x11, 0x51, 0x00, byte(c)}
	}
	return frames
}
