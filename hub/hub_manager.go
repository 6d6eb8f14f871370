package hub

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	tinybluetooth "tinygo.org/x/bluetooth"

	"BoostProg/logging"
)

// BluetoothRadio реализация Radio на tinygo bluetooth
type BluetoothRadio struct {
	adapter *tinybluetooth.Adapter

	mu              sync.RWMutex
	handler         RadioHandler
	scanning        bool
	addresses       map[PeerID]tinybluetooth.Address
	devices         map[PeerID]tinybluetooth.Device
	characteristics map[Channel]tinybluetooth.DeviceCharacteristic
	channelPeers    map[Channel]PeerID
	nextChannel     Channel
}

// NewBluetoothRadio включает адаптер по умолчанию
func NewBluetoothRadio() (*BluetoothRadio, error) {
	adapter := tinybluetooth.DefaultAdapter
	if adapter == nil {
		return nil, fmt.Errorf("BLE адаптер не найден")
	}

	// Включение адаптера
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ошибка включения BLE адаптера: %w", err)
	}

	r := &BluetoothRadio{
		adapter:         adapter,
		addresses:       make(map[PeerID]tinybluetooth.Address),
		devices:         make(map[PeerID]tinybluetooth.Device),
		characteristics: make(map[Channel]tinybluetooth.DeviceCharacteristic),
		channelPeers:    make(map[Channel]PeerID),
	}

	adapter.SetConnectHandler(func(device tinybluetooth.Device, connected bool) {
		if connected {
			return
		}
		peer := PeerID(device.Address.String())
		r.forget(peer)
		if h := r.getHandler(); h != nil {
			h.OnConnectionStateChanged(peer, PeerDisconnected, 0)
		}
	})
	return r, nil
}

// SetHandler реализует Radio
func (r *BluetoothRadio) SetHandler(h RadioHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *BluetoothRadio) getHandler() RadioHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handler
}

// StartScan запускает сканирование в отдельной горутине, потому что
// adapter.Scan блокирует до StopScan
func (r *BluetoothRadio) StartScan() error {
	r.mu.Lock()
	if r.scanning {
		r.mu.Unlock()
		return nil
	}
	r.scanning = true
	r.mu.Unlock()

	go func() {
		err := r.adapter.Scan(func(adapter *tinybluetooth.Adapter, result tinybluetooth.ScanResult) {
			data, ok := legoManufacturerData(result)
			if !ok {
				return
			}
			peer := PeerID(result.Address.String())
			logging.DebugLog("Реклама LEGO: %s [%s] RSSI: %d", result.LocalName(), peer, result.RSSI)

			r.mu.Lock()
			r.addresses[peer] = result.Address
			r.mu.Unlock()

			if h := r.getHandler(); h != nil {
				h.OnAdvertisement(peer, data)
			}
		})

		r.mu.Lock()
		r.scanning = false
		r.mu.Unlock()
		if err != nil {
			logrus.Errorf("Ошибка сканирования: %v", err)
		}
	}()
	return nil
}

// legoManufacturerData возвращает данные производителя LEGO из рекламы
func legoManufacturerData(result tinybluetooth.ScanResult) ([]byte, bool) {
	for _, element := range result.ManufacturerData() {
		if element.CompanyID == LEGO_COMPANY_ID {
			return element.Data, true
		}
	}
	return nil, false
}

// StopScan реализует Radio
func (r *BluetoothRadio) StopScan() error {
	r.mu.RLock()
	scanning := r.scanning
	r.mu.RUnlock()
	if !scanning {
		return nil
	}
	return r.adapter.StopScan()
}

// ConnectPeer подключается и ищет характеристику в отдельной горутине
func (r *BluetoothRadio) ConnectPeer(peer PeerID, spec ChannelSpec) error {
	r.mu.RLock()
	address, ok := r.addresses[peer]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("устройство с адресом %s не найдено", peer)
	}

	serviceUUID, err := tinybluetooth.ParseUUID(spec.Service)
	if err != nil {
		return fmt.Errorf("неверный UUID службы %s: %w", spec.Service, err)
	}
	charUUID, err := tinybluetooth.ParseUUID(spec.Characteristic)
	if err != nil {
		return fmt.Errorf("неверный UUID характеристики %s: %w", spec.Characteristic, err)
	}

	go func() {
		h := r.getHandler()
		if h == nil {
			return
		}

		device, err := r.adapter.Connect(address, tinybluetooth.ConnectionParams{})
		if err != nil {
			logrus.Errorf("Ошибка подключения к %s: %v", peer, err)
			h.OnConnectionStateChanged(peer, PeerFailed, 0)
			return
		}
		r.mu.Lock()
		r.devices[peer] = device
		r.mu.Unlock()
		h.OnConnectionStateChanged(peer, PeerConnected, 0)

		// Обнаруживаем службу и характеристику LWP
		char, err := discoverCharacteristic(device, serviceUUID, charUUID)
		if err != nil {
			logrus.Errorf("Ошибка обнаружения служб %s: %v", peer, err)
			_ = device.Disconnect()
			r.forget(peer)
			h.OnConnectionStateChanged(peer, PeerFailed, 0)
			return
		}

		r.mu.Lock()
		r.nextChannel++
		ch := r.nextChannel
		r.characteristics[ch] = char
		r.channelPeers[ch] = peer
		r.mu.Unlock()

		h.OnConnectionStateChanged(peer, PeerReady, ch)
	}()
	return nil
}

func discoverCharacteristic(device tinybluetooth.Device, serviceUUID, charUUID tinybluetooth.UUID) (tinybluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices([]tinybluetooth.UUID{serviceUUID})
	if err != nil {
		return tinybluetooth.DeviceCharacteristic{}, fmt.Errorf("ошибка обнаружения служб: %w", err)
	}
	if len(services) == 0 {
		return tinybluetooth.DeviceCharacteristic{}, fmt.Errorf("служба %s не найдена", serviceUUID.String())
	}

	chars, err := services[0].DiscoverCharacteristics([]tinybluetooth.UUID{charUUID})
	if err != nil {
		return tinybluetooth.DeviceCharacteristic{}, fmt.Errorf("ошибка обнаружения характеристик: %w", err)
	}
	for _, char := range chars {
		if strings.EqualFold(char.UUID().String(), charUUID.String()) {
			return char, nil
		}
	}
	return tinybluetooth.DeviceCharacteristic{}, fmt.Errorf("характеристика %s не найдена", charUUID.String())
}

// DisconnectPeer реализует Radio. Подтверждение приходит через обработчик
// подключения адаптера.
func (r *BluetoothRadio) DisconnectPeer(peer PeerID) error {
	r.mu.RLock()
	device, ok := r.devices[peer]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("устройство %s не подключено", peer)
	}
	return device.Disconnect()
}

// WriteCharacteristic реализует Radio
func (r *BluetoothRadio) WriteCharacteristic(ch Channel, data []byte) error {
	r.mu.RLock()
	char, ok := r.characteristics[ch]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("характеристика %d не найдена", ch)
	}

	if _, err := char.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("ошибка отправки данных: %w", err)
	}
	return nil
}

// SetNotifications реализует Radio
func (r *BluetoothRadio) SetNotifications(ch Channel, enabled bool) error {
	r.mu.RLock()
	char, ok := r.characteristics[ch]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("характеристика %d не найдена", ch)
	}

	if !enabled {
		return char.EnableNotifications(nil)
	}
	return char.EnableNotifications(func(data []byte) {
		if h := r.getHandler(); h != nil {
			h.OnDataReceived(ch, data)
		}
	})
}

// forget удаляет сведения об отключенном устройстве
func (r *BluetoothRadio) forget(peer PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, peer)
	for ch, p := range r.channelPeers {
		if p == peer {
			delete(r.channelPeers, ch)
			delete(r.characteristics, ch)
		}
	}
}
