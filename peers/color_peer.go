package peers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"BoostProg/lwp"
)

// Publisher отправка сообщения в MQTT. Реализуется транспортами пакета bridge.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// ColorMessage сообщение о смене цвета для внешнего устройства
type ColorMessage struct {
	Color string `json:"color"`
	Index int    `json:"index"`
}

// MQTTColorPeer внешнее цветное устройство (робот-игрушка), которое слушает
// топик MQTT
type MQTTColorPeer struct {
	pub   Publisher
	topic string
}

// NewMQTTColorPeer topic полный, с префиксом моста
func NewMQTTColorPeer(pub Publisher, topic string) (*MQTTColorPeer, error) {
	if pub == nil {
		return nil, fmt.Errorf("peers: нет MQTT транспорта")
	}
	topic = strings.Trim(topic, "/")
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return nil, fmt.Errorf("peers: неверный топик %q", topic)
	}
	return &MQTTColorPeer{pub: pub, topic: topic}, nil
}

// Topic топик публикации
func (p *MQTTColorPeer) Topic() string {
	return p.topic
}

// SetColor публикует цвет
func (p *MQTTColorPeer) SetColor(ctx context.Context, color lwp.Color) error {
	if color == lwp.ColorNone {
		return fmt.Errorf("%w: цвет не задан", lwp.ErrInvalidParameter)
	}
	payload, err := json.Marshal(ColorMessage{Color: color.String(), Index: int(color)})
	if err != nil {
		return err
	}
	if err := p.pub.Publish(ctx, p.topic, payload); err != nil {
		return fmt.Errorf("peers: публикация цвета: %w", err)
	}
	return nil
}
