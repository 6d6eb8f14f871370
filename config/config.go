// Package config загружает настройки BoostProg из YAML файла и .env
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"BoostProg/hub"
	"BoostProg/lwp"
)

// Режимы MQTT моста
const (
	MQTTOff      = "off"
	MQTTClient   = "client"
	MQTTEmbedded = "embedded"
)

// Config корневая конфигурация
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Link       LinkConfig       `yaml:"link"`
	Behaviors  BehaviorsConfig  `yaml:"behaviors"`
	API        APIConfig        `yaml:"api"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	SmartLight SmartLightConfig `yaml:"smart_light"`
}

// LinkConfig параметры сессии
type LinkConfig struct {
	ScanTimeout     string                 `yaml:"scan_timeout"`
	AutoAssignPorts bool                   `yaml:"auto_assign_ports"`
	Ports           map[string]PortsConfig `yaml:"ports"` // ключ - роль ("boost", "lpf2")
}

// PortsConfig буквы портов одной роли
type PortsConfig struct {
	ColorSensor   string `yaml:"color_sensor"`
	ExternalMotor string `yaml:"external_motor"`
}

// BehaviorsConfig включенные автоматизации и их параметры
type BehaviorsConfig struct {
	Enabled     []string          `yaml:"enabled"`
	SyncColors  SyncColorsConfig  `yaml:"sync_colors"`
	ButtonLight ButtonLightConfig `yaml:"button_change_light"`
	ButtonMotor ButtonMotorConfig `yaml:"button_change_motor"`
	TiltLED     TiltLEDConfig     `yaml:"tilt_change_led"`
	Coaster     CoasterConfig     `yaml:"roller_coaster"`
	PeerColor   PeerColorConfig   `yaml:"peer_color"`
	MotorLight  MotorLightConfig  `yaml:"motor_button_lifx"`
}

// SyncColorsConfig зеркалирование цвета датчика на светодиоды
type SyncColorsConfig struct {
	Source  string   `yaml:"source"`
	Targets []string `yaml:"targets"`
}

// ButtonLightConfig переключение цвета светодиода кнопкой
type ButtonLightConfig struct {
	Source string   `yaml:"source"`
	Target string   `yaml:"target"`
	Colors []string `yaml:"colors"`
}

// ButtonMotorConfig запуск мотора кнопкой
type ButtonMotorConfig struct {
	Source    string `yaml:"source"`
	Target    string `yaml:"target"`
	Motor     string `yaml:"motor"` // A, B, AB или external_motor
	Power     int    `yaml:"power"`
	Duration  string `yaml:"duration"`
	Clockwise *bool  `yaml:"clockwise"`
}

// TiltLEDConfig цвет светодиода по наклону
type TiltLEDConfig struct {
	Source string            `yaml:"source"`
	Target string            `yaml:"target"`
	Colors map[string]string `yaml:"colors"` // положение -> цвет
}

// CoasterConfig поездка вперед-назад по расписанию
type CoasterConfig struct {
	Role     string `yaml:"role"`
	Power    int    `yaml:"power"`
	Duration string `yaml:"duration"`
	Period   string `yaml:"period"`
}

// PeerColorConfig синхронизация цвета с внешним устройством
type PeerColorConfig struct {
	Source string `yaml:"source"`
	Topic  string `yaml:"topic"`
}

// MotorLightConfig переключение лампы поворотом внешнего мотора
type MotorLightConfig struct {
	Source   string `yaml:"source"`
	Debounce string `yaml:"debounce"`
}

// APIConfig HTTP API
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// MQTTConfig MQTT мост
type MQTTConfig struct {
	Mode        string `yaml:"mode"`
	BrokerURL   string `yaml:"broker_url"`
	Listen      string `yaml:"listen"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// SmartLightConfig HTTP лампа (LIFX)
type SmartLightConfig struct {
	BaseURL  string `yaml:"base_url"`
	Token    string `yaml:"token"`
	Selector string `yaml:"selector"`
	Timeout  string `yaml:"timeout"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		LogLevel: "info",
		Link: LinkConfig{
			ScanTimeout: "10s",
			Ports:       map[string]PortsConfig{},
		},
		Behaviors: BehaviorsConfig{
			SyncColors:  SyncColorsConfig{Source: "boost", Targets: []string{"boost"}},
			ButtonLight: ButtonLightConfig{Source: "boost", Target: "lpf2", Colors: []string{"red", "blue"}},
			ButtonMotor: ButtonMotorConfig{Source: "boost", Target: "boost", Motor: "A", Power: 50, Duration: "1s"},
			TiltLED:     TiltLEDConfig{Source: "boost", Target: "boost"},
			Coaster:     CoasterConfig{Role: "boost", Power: 40, Duration: "2s", Period: "5s"},
			PeerColor:   PeerColorConfig{Source: "boost", Topic: "peer/color"},
			MotorLight:  MotorLightConfig{Source: "boost", Debounce: "1s"},
		},
		API: APIConfig{Listen: ":8080"},
		MQTT: MQTTConfig{
			Mode:        MQTTOff,
			BrokerURL:   "mqtt://localhost:1883",
			Listen:      ":1883",
			TopicPrefix: "boostprog",
			ClientID:    "boostprog",
		},
		SmartLight: SmartLightConfig{
			BaseURL:  "https://api.lifx.com/v1",
			Selector: "all",
			Timeout:  "5s",
		},
	}
}

// LoadDotEnv загружает переменные окружения из файла. Отсутствующий файл
// не является ошибкой.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load читает YAML поверх значений по умолчанию. Ссылки ${VAR} раскрываются
// до разбора. Пустой путь возвращает значения по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: загрузка: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: разбор: %w", err)
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c Config) Validate() error {
	if _, err := c.ScanTimeout(); err != nil {
		return err
	}
	if _, err := c.PortMaps(); err != nil {
		return err
	}

	switch c.MQTT.Mode {
	case "", MQTTOff, MQTTEmbedded:
	case MQTTClient:
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("config: mqtt: broker_url обязателен в режиме client")
		}
	default:
		return fmt.Errorf("config: mqtt: неизвестный режим %q", c.MQTT.Mode)
	}
	if c.MQTT.Mode == MQTTEmbedded && c.MQTT.Listen == "" {
		return fmt.Errorf("config: mqtt: listen обязателен в режиме embedded")
	}

	seen := make(map[string]struct{}, len(c.Behaviors.Enabled))
	for _, name := range c.Behaviors.Enabled {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("config: behaviors: пустое имя")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config: behaviors: повторное имя %q", name)
		}
		seen[name] = struct{}{}
	}

	for _, d := range []struct{ field, value string }{
		{"behaviors.button_change_motor.duration", c.Behaviors.ButtonMotor.Duration},
		{"behaviors.roller_coaster.duration", c.Behaviors.Coaster.Duration},
		{"behaviors.roller_coaster.period", c.Behaviors.Coaster.Period},
		{"behaviors.motor_button_lifx.debounce", c.Behaviors.MotorLight.Debounce},
		{"smart_light.timeout", c.SmartLight.Timeout},
	} {
		if _, err := ParseDuration(d.field, d.value); err != nil {
			return err
		}
	}
	return nil
}

// ScanTimeout возвращает время сканирования
func (c Config) ScanTimeout() (time.Duration, error) {
	if c.Link.ScanTimeout == "" {
		return hub.DefaultScanTimeout, nil
	}
	d, err := ParseDuration("link.scan_timeout", c.Link.ScanTimeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: link.scan_timeout должен быть положительным")
	}
	return d, nil
}

// PortMaps возвращает начальные назначения портов по ролям
func (c Config) PortMaps() (map[hub.Role]lwp.PortMap, error) {
	out := make(map[hub.Role]lwp.PortMap, len(c.Link.Ports))
	for name, pc := range c.Link.Ports {
		role, err := hub.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("config: link.ports: %w", err)
		}
		ports := out[role]
		for _, a := range []struct {
			port   lwp.Port
			letter string
		}{
			{lwp.PortColorSensor, pc.ColorSensor},
			{lwp.PortExternalMotor, pc.ExternalMotor},
		} {
			if a.letter == "" {
				continue
			}
			letter, err := lwp.ParseLetter(a.letter)
			if err != nil {
				return nil, fmt.Errorf("config: link.ports.%s: %w", name, err)
			}
			if ports, err = ports.With(a.port, letter); err != nil {
				return nil, fmt.Errorf("config: link.ports.%s: %w", name, err)
			}
		}
		out[role] = ports
	}
	return out, nil
}

// SessionOptions собирает параметры сессии
func (c Config) SessionOptions() (hub.Options, error) {
	timeout, err := c.ScanTimeout()
	if err != nil {
		return hub.Options{}, err
	}
	ports, err := c.PortMaps()
	if err != nil {
		return hub.Options{}, err
	}
	return hub.Options{ScanTimeout: timeout, Ports: ports, AutoAssignPorts: c.Link.AutoAssignPorts}, nil
}

// ParseDuration разбирает длительность вида "1s", "500ms". Пустая строка
// означает ноль.
func ParseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s: отрицательная длительность", field)
	}
	return d, nil
}
