package lwp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeButton(t *testing.T) {
	ev, err := Decode([]byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x01}, PortMap{})
	require.NoError(t, err)

	button, ok := ev.(ButtonPressed)
	require.True(t, ok)
	assert.True(t, button.Pressed)
	assert.Equal(t, []byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x01}, button.Raw())

	ev, err = Decode([]byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x00}, PortMap{})
	require.NoError(t, err)
	assert.False(t, ev.(ButtonPressed).Pressed)
}

func TestDecodeShortButtonFrameIsMalformed(t *testing.T) {
	_, err := Decode([]byte{0x03, 0x00, 0x01}, PortMap{})
	assert.ErrorIs(t, err, ErrMalformedFrame)

	// следующий кадр разбирается как обычно
	ev, err := Decode([]byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x01}, PortMap{})
	require.NoError(t, err)
	assert.IsType(t, ButtonPressed{}, ev)
}

func TestDecodeTooShortForHeader(t *testing.T) {
	_, err := Decode([]byte{0x02, 0x00}, PortMap{})

	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeUnknownTypeIsUnrecognized(t *testing.T) {
	_, err := Decode([]byte{0x05, 0x00, 0x7e, 0x00, 0x00}, PortMap{})

	assert.ErrorIs(t, err, ErrUnrecognizedFrame)
}

func TestDecodeOtherHubPropertyIsUnrecognized(t *testing.T) {
	_, err := Decode([]byte{0x06, 0x00, 0x01, 0x06, 0x06, 0x64}, PortMap{})

	assert.ErrorIs(t, err, ErrUnrecognizedFrame)
}

func TestDecodeRejectsCommandFrames(t *testing.T) {
	ports := PortMap{ColorSensor: LetterC, ExternalMotor: LetterD}
	actions := []Action{
		RunMotor{Port: PortInternalA, Power: 50, DurationMs: 100},
		RunMotor{Port: PortExternalMotor, Power: 50, DurationMs: 100, Direction: CounterClockwise},
		RunMotorsOpposed{Power: 20, DurationMs: 100},
		SetNotifications{Sensor: SensorColor, Enabled: true},
		SetNotifications{Sensor: SensorTilt, Enabled: false},
		SetNotifications{Sensor: SensorButton, Enabled: true},
		SetLEDColor{Color: ColorGreen},
	}

	for _, a := range actions {
		f, err := Encode(a, ports)
		require.NoError(t, err)

		_, err = Decode(f.Bytes(), ports)
		assert.ErrorIs(t, err, ErrUnrecognizedFrame, "frame %s", f)
	}
}

func TestDecodeButtonArmFrameIsUnrecognized(t *testing.T) {
	f, err := Encode(SetNotifications{Sensor: SensorButton, Enabled: true}, PortMap{})
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x00, 0x01, 0x02, 0x02}, f.Bytes())

	_, err = Decode(f.Bytes(), PortMap{})
	assert.ErrorIs(t, err, ErrUnrecognizedFrame)

	_, err = Decode([]byte{0x05, 0x00, 0x01, 0x02, 0x06}, PortMap{})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeDeclaredLengthMismatch(t *testing.T) {
	_, err := Decode([]byte{0x07, 0x00, 0x01, 0x02, 0x06, 0x01}, PortMap{})
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte{0x05, 0x00, 0x45, 0x3a, 0x01, 0x00}, PortMap{})
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte{0x06, 0x00, 0x7e, 0x00, 0x00}, PortMap{})
	assert.ErrorIs(t, err, ErrUnrecognizedFrame)
}

func TestDecodeAttachedIO(t *testing.T) {
	ev, err := Decode([]byte{0x0f, 0x00, 0x04, 0x01, 0x01, 0x25, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10}, PortMap{})
	require.NoError(t, err)

	connected, ok := ev.(PortConnected)
	require.True(t, ok)
	assert.Equal(t, byte(PORT_BYTE_C), connected.PortID)
	assert.Equal(t, PortColorSensor, connected.Port)
	assert.Equal(t, DEVICE_TYPE_COLOR_DISTANCE, connected.Device)

	ev, err = Decode([]byte{0x0f, 0x00, 0x04, 0x37, 0x01, 0x27, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10}, PortMap{})
	require.NoError(t, err)
	assert.Equal(t, PortInternalA, ev.(PortConnected).Port)

	ev, err = Decode([]byte{0x05, 0x00, 0x04, 0x02, 0x00}, PortMap{})
	require.NoError(t, err)
	disconnected, ok := ev.(PortDisconnected)
	require.True(t, ok)
	assert.Equal(t, PortD, disconnected.Port)
}

func TestDecodeUnknownAttachmentDoesNotFail(t *testing.T) {
	ev, err := Decode([]byte{0x0f, 0x00, 0x04, 0x02, 0x01, 0x99, 0x01, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10}, PortMap{})
	require.NoError(t, err)

	unknown, ok := ev.(UnrecognizedAttachment)
	require.True(t, ok)
	assert.Equal(t, DeviceType(0x0199), unknown.Device)
}

func TestDecodeAttachWithoutTypeIsMalformed(t *testing.T) {
	_, err := Decode([]byte{0x05, 0x00, 0x04, 0x02, 0x01}, PortMap{})

	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodePortValueDependsOnAssignment(t *testing.T) {
	frame := []byte{0x06, 0x00, 0x45, 0x01, 0x09, 0x03}

	ev, err := Decode(frame, PortMap{ColorSensor: LetterC})
	require.NoError(t, err)
	reading, ok := ev.(ColorSensorReading)
	require.True(t, ok)
	assert.Equal(t, ColorRed, reading.Color)
	assert.Equal(t, 3, reading.Distance)
	assert.Equal(t, PortC, reading.Port)

	ev, err = Decode(frame, PortMap{ExternalMotor: LetterC})
	require.NoError(t, err)
	motor, ok := ev.(ExternalMotorReading)
	require.True(t, ok)
	assert.Equal(t, PortC, motor.Port)

	ev, err = Decode(frame, PortMap{})
	require.NoError(t, err)
	assert.IsType(t, PortValue{}, ev)
}

func TestDecodeTiltAndInternalMotor(t *testing.T) {
	ev, err := Decode([]byte{0x05, 0x00, 0x45, 0x3a, 0x01}, PortMap{})
	require.NoError(t, err)
	tilt, ok := ev.(TiltReading)
	require.True(t, ok)
	assert.Equal(t, TiltStanding, tilt.Orientation)
	assert.Nil(t, tilt.Axes)

	ev, err = Decode([]byte{0x06, 0x00, 0x45, 0x3a, 0xfe, 0x05}, PortMap{})
	require.NoError(t, err)
	assert.Equal(t, []int8{-2, 5}, ev.(TiltReading).Axes)

	ev, err = Decode([]byte{0x08, 0x00, 0x45, 0x38, 0x10, 0x00, 0x00, 0x00}, PortMap{})
	require.NoError(t, err)
	assert.Equal(t, PortInternalB, ev.(InternalMotorReading).Port)
}

func TestDecodeFeedbackAndError(t *testing.T) {
	ev, err := Decode([]byte{0x05, 0x00, 0x82, 0x37, 0x0a}, PortMap{})
	require.NoError(t, err)
	assert.Equal(t, byte(0x0a), ev.(CommandFeedback).Status)

	ev, err = Decode([]byte{0x05, 0x00, 0x05, 0x81, 0x06}, PortMap{})
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), ev.(HubError).Command)
}

func TestRawIsCopied(t *testing.T) {
	frame := []byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x01}
	ev, err := Decode(frame, PortMap{})
	require.NoError(t, err)

	frame[5] = 0x00
	raw := ev.Raw()
	raw[0] = 0xff

	assert.Equal(t, []byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x01}, ev.Raw())
}

func TestDescribe(t *testing.T) {
	ev, err := Decode([]byte{0x06, 0x00, 0x01, 0x02, 0x06, 0x01}, PortMap{})
	require.NoError(t, err)

	assert.Equal(t, "Кнопка нажата", Describe(ev))
}

func TestHexHelpers(t *testing.T) {
	b, err := HexToBytes("0x0c, 0x00:81 37")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0c, 0x00, 0x81, 0x37}, b)
	assert.Equal(t, "0C 00 81 37", BytesToHex(b))

	_, err = HexToBytes("zz")
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = HexToBytes("  ")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
