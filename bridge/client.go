package bridge

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"BoostProg/config"
	"BoostProg/logging"
)

// PahoPublisher клиент внешнего брокера. Подписки восстанавливаются при
// каждом переподключении.
type PahoPublisher struct {
	conn *autopaho.ConnectionManager

	mu       sync.RWMutex
	handlers map[string]func(payload []byte)
}

// NewPahoPublisher подключается к брокеру и ждет соединения
func NewPahoPublisher(ctx context.Context, cfg config.MQTTConfig) (*PahoPublisher, error) {
	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("bridge: broker_url: %w", err)
	}

	p := &PahoPublisher{handlers: map[string]func([]byte){}}
	log := logging.ForComponent("mqtt")

	cliCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{u},
		KeepAlive:       20,
		ConnectUsername: cfg.Username,
		ConnectPassword: []byte(cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			log.Infof("Соединение с брокером %s установлено", u.Host)
			p.resubscribe(cm)
		},
		OnConnectError: func(err error) {
			log.Warnf("Ошибка подключения к брокеру: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					p.route(pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				log.Warnf("Ошибка клиента MQTT: %v", err)
			},
		},
	}

	conn, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return nil, fmt.Errorf("bridge: mqtt: %w", err)
	}
	if err := conn.AwaitConnection(ctx); err != nil {
		return nil, fmt.Errorf("bridge: mqtt: %w", err)
	}
	p.conn = conn
	return p, nil
}

func (p *PahoPublisher) route(topic string, payload []byte) {
	p.mu.RLock()
	handler, ok := p.handlers[topic]
	p.mu.RUnlock()
	if ok {
		handler(payload)
	}
}

func (p *PahoPublisher) resubscribe(cm *autopaho.ConnectionManager) {
	p.mu.RLock()
	topics := make([]paho.SubscribeOptions, 0, len(p.handlers))
	for topic := range p.handlers {
		topics = append(topics, paho.SubscribeOptions{Topic: topic, QoS: 1})
	}
	p.mu.RUnlock()
	if len(topics) == 0 {
		return
	}
	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{Subscriptions: topics}); err != nil {
		logging.ForComponent("mqtt").Warnf("Не удалось восстановить подписки: %v", err)
	}
}

// Publish публикует с QoS 1
func (p *PahoPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := p.conn.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   topic,
		Payload: payload,
	})
	return err
}

// Subscribe подписывается на точный топик (без шаблонов)
func (p *PahoPublisher) Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error {
	p.mu.Lock()
	p.handlers[topic] = handler
	p.mu.Unlock()

	_, err := p.conn.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 1}},
	})
	return err
}

// Close отключается от брокера
func (p *PahoPublisher) Close() error {
	return p.conn.Disconnect(context.Background())
}
