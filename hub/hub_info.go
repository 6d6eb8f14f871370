package hub

import (
	"fmt"
	"time"

	"BoostProg/lwp"
)

// State состояние соединения роли
type State int

const (
	StateIdle State = iota
	StateScanning
	StateFound
	StateConnecting
	StateReady
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateFound:
		return "found"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDisconnecting:
		return "disconnecting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// LinkState состояние одной роли
type LinkState struct {
	Role    Role
	State   State
	Peer    PeerID
	Channel Channel
	Since   time.Time
	// Notifying уведомления канала включены в текущем цикле Ready
	Notifying bool
}

// Attachment устройство, подключенное к порту хаба
type Attachment struct {
	PortID     byte
	Port       lwp.Port
	Device     lwp.DeviceType
	Name       string
	LastUpdate time.Time
}

// HubInfo сводка по роли для панели и HTTP API
type HubInfo struct {
	Link     LinkState
	Ports    lwp.PortMap
	Attached []Attachment
}

// UpdateKind тип события жизненного цикла
type UpdateKind int

const (
	Connected UpdateKind = iota
	Disconnected
	ConnectionFailed
	Notification
)

func (k UpdateKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case ConnectionFailed:
		return "connection_failed"
	case Notification:
		return "notification"
	}
	return fmt.Sprintf("update(%d)", int(k))
}

// Update событие сессии. Event заполнен только для Notification,
// Err только для ConnectionFailed.
type Update struct {
	Kind  UpdateKind
	Role  Role
	Event lwp.Event
	Err   error
	At    time.Time
}
