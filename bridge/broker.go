// Package bridge публикует события хабов в MQTT и принимает команды из MQTT.
package bridge

import (
	"context"
	"fmt"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"BoostProg/logging"
)

// Transport MQTT соединение, которым пользуется мост
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error
	Close() error
}

// EmbeddedBroker брокер mochi внутри процесса. Мост работает через его
// встроенного клиента, внешние клиенты подключаются по TCP.
type EmbeddedBroker struct {
	server *mochi.Server
	listen string

	mu     sync.Mutex
	nextID int
}

// NewEmbeddedBroker listen пустой - брокер без TCP слушателя
func NewEmbeddedBroker(listen string) *EmbeddedBroker {
	server := mochi.New(&mochi.Options{
		InlineClient: true,
	})
	return &EmbeddedBroker{server: server, listen: listen, nextID: 1}
}

// Start запускает брокер
func (b *EmbeddedBroker) Start() error {
	if err := b.server.AddHook(new(auth.AllowHook), nil); err != nil {
		return fmt.Errorf("bridge: брокер: %w", err)
	}
	if b.listen != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "boostprog", Address: b.listen})
		if err := b.server.AddListener(tcp); err != nil {
			return fmt.Errorf("bridge: брокер: %w", err)
		}
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			logging.ForComponent("mqtt").Errorf("Брокер остановлен с ошибкой: %v", err)
		}
	}()
	logging.ForComponent("mqtt").Infof("Встроенный брокер запущен (%s)", b.listen)
	return nil
}

// Publish публикует сообщение без сохранения
func (b *EmbeddedBroker) Publish(_ context.Context, topic string, payload []byte) error {
	return b.server.Publish(topic, payload, false, 0)
}

// Subscribe подписывает встроенного клиента
func (b *EmbeddedBroker) Subscribe(_ context.Context, topic string, handler func(payload []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.server.Subscribe(topic, b.nextID, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		handler(pk.Payload)
	})
	if err != nil {
		return err
	}
	b.nextID++
	return nil
}

// Close останавливает брокер
func (b *EmbeddedBroker) Close() error {
	return b.server.Close()
}
