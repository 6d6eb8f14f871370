package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevel(t *testing.T) {
	t.Setenv(EnvLevel, "")
	Setup("debug")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.True(t, DebugMode)

	Setup("warn")
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.False(t, DebugMode)
}

func TestSetupEnvOverrides(t *testing.T) {
	t.Setenv(EnvLevel, "error")
	Setup("debug")

	assert.Equal(t, logrus.ErrorLevel, logrus.GetLevel())
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	t.Setenv(EnvLevel, "")
	Setup("loud")

	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestFields(t *testing.T) {
	assert.Equal(t, "boost", ForRole("boost").Data["role"])
	assert.Equal(t, "bridge", ForComponent("bridge").Data["component"])
}
