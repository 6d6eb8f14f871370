// Package logging настраивает общий журнал приложения на logrus
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLevel переменная окружения с уровнем журнала
const EnvLevel = "BOOSTPROG_LOG_LEVEL"

// DebugMode включает подробный вывод кадров протокола
var DebugMode = false

// Setup настраивает стандартный logrus. Переменная окружения имеет приоритет
// над уровнем из конфигурации.
func Setup(level string) {
	if env := os.Getenv(EnvLevel); env != "" {
		level = env
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		if level != "" {
			logrus.Warnf("Неизвестный уровень журнала %q, используется info", level)
		}
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	DebugMode = lvl >= logrus.DebugLevel
}

// DebugLog выводит отладочное сообщение
func DebugLog(format string, args ...interface{}) {
	if DebugMode {
		logrus.Debugf(format, args...)
	}
}

// ForRole возвращает журнал с полем роли хаба
func ForRole(role string) *logrus.Entry {
	return logrus.WithField("role", role)
}

// ForComponent возвращает журнал с полем компонента
func ForComponent(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
