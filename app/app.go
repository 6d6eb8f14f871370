// Package app собирает компоненты BoostProg из конфигурации: сессию,
// контроллер, реестр автоматизаций, внешние устройства, MQTT мост и HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"BoostProg/api"
	"BoostProg/automation"
	"BoostProg/bridge"
	"BoostProg/config"
	"BoostProg/hub"
	"BoostProg/logging"
	"BoostProg/peers"
)

// App запущенное приложение
type App struct {
	Config     config.Config
	Session    *hub.Session
	Controller *hub.Controller
	Registry   *automation.Registry
	API        *api.Server
	Bridge     *bridge.Bridge

	transport bridge.Transport
	deps      automation.Deps

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New собирает приложение поверх радио. MQTT транспорт подключается сразу,
// фоновые циклы запускает Start.
func New(ctx context.Context, cfg config.Config, radio hub.Radio) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.SessionOptions()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Registry: automation.NewRegistry()}
	a.Session = hub.NewSession(radio, opts)
	a.Controller = hub.NewController(a.Session)
	a.deps = automation.Deps{Commands: a.Controller}

	if err := a.setupMQTT(ctx); err != nil {
		_ = a.Session.Close()
		return nil, err
	}
	a.setupSmartLight()

	a.API = api.NewServer(api.NewHubs(a.Controller), a.Registry, a.Build, automation.Available())
	return a, nil
}

func (a *App) setupMQTT(ctx context.Context) error {
	log := logging.ForComponent("app")
	switch a.Config.MQTT.Mode {
	case config.MQTTEmbedded:
		broker := bridge.NewEmbeddedBroker(a.Config.MQTT.Listen)
		if err := broker.Start(); err != nil {
			return err
		}
		a.transport = broker
	case config.MQTTClient:
		client, err := bridge.NewPahoPublisher(ctx, a.Config.MQTT)
		if err != nil {
			return err
		}
		a.transport = client
	default:
		log.Info("MQTT мост выключен")
		return nil
	}

	a.Bridge = bridge.New(a.transport, a.Controller, a.Config.MQTT.TopicPrefix)
	peer, err := peers.NewMQTTColorPeer(a.transport, a.Bridge.Topic(a.Config.Behaviors.PeerColor.Topic))
	if err != nil {
		return err
	}
	a.deps.Peer = peer
	return nil
}

func (a *App) setupSmartLight() {
	if a.Config.SmartLight.Token == "" {
		return
	}
	sink, err := peers.NewLIFXSink(a.Config.SmartLight)
	if err != nil {
		logging.ForComponent("app").Warnf("Лампа не настроена: %v", err)
		return
	}
	timeout, _ := config.ParseDuration("smart_light.timeout", a.Config.SmartLight.Timeout)
	a.deps.Light = sink
	a.deps.LightTimeout = timeout
}

// Build собирает поведение по имени с зависимостями приложения
func (a *App) Build(name string) (automation.Behavior, error) {
	return automation.Build(name, a.Config.Behaviors, a.deps)
}

// Enable собирает и регистрирует поведение
func (a *App) Enable(ctx context.Context, name string) error {
	b, err := a.Build(name)
	if err != nil {
		return err
	}
	return a.Registry.Register(ctx, name, b)
}

// EnableConfigured включает поведения из behaviors.enabled, которые еще не
// активны. Ошибка одного поведения не мешает остальным.
func (a *App) EnableConfigured(ctx context.Context) error {
	var errs []error
	for _, name := range a.Config.Behaviors.Enabled {
		if a.Registry.Has(name) {
			continue
		}
		if err := a.Enable(ctx, name); err != nil {
			logging.ForComponent("app").Warnf("Поведение %s не включено: %v", name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start запускает реестр и мост. Каждый получает свою подписку на события.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	updates, unsubscribe := a.Session.Subscribe()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsubscribe()
		a.Registry.Run(ctx, updates)
	}()

	if a.Bridge != nil {
		if err := a.Bridge.Start(ctx); err != nil {
			return fmt.Errorf("app: %w", err)
		}
		bridgeUpdates, unsubscribeBridge := a.Session.Subscribe()
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer unsubscribeBridge()
			a.Bridge.Run(ctx, bridgeUpdates)
		}()
	}
	return nil
}

// ServeAPI блокирует до остановки HTTP сервера. Пустой адрес - API выключен.
func (a *App) ServeAPI() error {
	if a.Config.API.Listen == "" {
		return nil
	}
	return a.API.Start(a.Config.API.Listen)
}

// Close останавливает все в обратном порядке
func (a *App) Close(ctx context.Context) {
	if a.Config.API.Listen != "" {
		if err := a.API.Shutdown(ctx); err != nil {
			logging.ForComponent("app").Warnf("Ошибка остановки API: %v", err)
		}
	}
	a.Registry.Close(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	_ = a.Session.Disconnect()
	_ = a.Session.Close()
	if a.transport != nil {
		_ = a.transport.Close()
	}
}
