package hub

import "fmt"

// PeerID непрозрачный адрес найденного устройства
type PeerID string

// Channel дескриптор характеристики для записи и уведомлений. Выдается
// радио после обнаружения служб, ноль означает "не определен".
type Channel uint32

// ChannelSpec какую службу и характеристику искать при подключении
type ChannelSpec struct {
	Service        string
	Characteristic string
}

// PeerState состояние соединения, сообщаемое радио
type PeerState int

const (
	PeerConnected    PeerState = iota // канал связи установлен, службы еще не найдены
	PeerReady                         // характеристика найдена, Channel заполнен
	PeerFailed                        // подключение не удалось
	PeerDisconnected                  // соединение закрыто
)

func (s PeerState) String() string {
	switch s {
	case PeerConnected:
		return "connected"
	case PeerReady:
		return "ready"
	case PeerFailed:
		return "failed"
	case PeerDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("peer_state(%d)", int(s))
}

// RadioHandler получает обратные вызовы радио. Вызовы приходят из
// произвольных горутин.
type RadioHandler interface {
	OnAdvertisement(peer PeerID, manufacturerData []byte)
	OnConnectionStateChanged(peer PeerID, state PeerState, ch Channel)
	OnDataReceived(ch Channel, data []byte)
}

// Radio примитивы платформенного BLE стека. ConnectPeer и DisconnectPeer
// асинхронны: результат приходит через OnConnectionStateChanged.
type Radio interface {
	SetHandler(h RadioHandler)
	StartScan() error
	StopScan() error
	ConnectPeer(peer PeerID, spec ChannelSpec) error
	DisconnectPeer(peer PeerID) error
	WriteCharacteristic(ch Channel, data []byte) error
	SetNotifications(ch Channel, enabled bool) error
}
