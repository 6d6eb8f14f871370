// Package hub управляет BLE соединениями с хабами двух ролей (Boost Move Hub и
// LPF2 Smart Hub): общим сканированием, машиной состояний каждой роли, отправкой
// кадров и раздачей разобранных уведомлений подписчикам.
package hub

import (
	"fmt"
	"strings"
)

// Role роль хаба
type Role int

const (
	RoleA Role = iota // Boost Move Hub
	RoleB             // LPF2 Smart Hub
)

// Roles все роли в порядке обхода
var Roles = []Role{RoleA, RoleB}

// LEGO_COMPANY_ID идентификатор производителя в рекламных данных
const LEGO_COMPANY_ID = 0x0397

// UUID службы и характеристики LWP, общие для обеих ролей
const (
	LWP_SERVICE_UUID        = "00001623-1212-efde-1623-785feabcd123"
	LWP_CHARACTERISTIC_UUID = "00001624-1212-efde-1623-785feabcd123"
)

// RoleInfo постоянные свойства роли
type RoleInfo struct {
	Role  Role
	Name  string
	Title string
	// Discriminators значения байта 1 в данных производителя, по которым
	// опознается роль
	Discriminators []byte
	Channel        ChannelSpec
	// AutoSubscribe включать уведомления сразу после перехода в Ready
	AutoSubscribe bool
}

var roleTable = map[Role]RoleInfo{
	RoleA: {
		Role:           RoleA,
		Name:           "boost",
		Title:          "Boost Move Hub",
		Discriminators: []byte{0x64, 0x40},
		Channel:        ChannelSpec{Service: LWP_SERVICE_UUID, Characteristic: LWP_CHARACTERISTIC_UUID},
		AutoSubscribe:  true,
	},
	RoleB: {
		Role:           RoleB,
		Name:           "lpf2",
		Title:          "LPF2 Smart Hub",
		Discriminators: []byte{0x65, 0x41},
		Channel:        ChannelSpec{Service: LWP_SERVICE_UUID, Characteristic: LWP_CHARACTERISTIC_UUID},
	},
}

// Info возвращает свойства роли
func (r Role) Info() RoleInfo {
	return roleTable[r]
}

func (r Role) String() string {
	if info, ok := roleTable[r]; ok {
		return info.Name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole разбирает имя роли ("boost", "lpf2", "a", "b")
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boost", "a", "rolea":
		return RoleA, nil
	case "lpf2", "b", "roleb":
		return RoleB, nil
	}
	return 0, fmt.Errorf("неизвестная роль хаба %q", s)
}

// MatchAdvertisement определяет роль по данным производителя LEGO.
// Данные без байта-дискриминатора или с чужим значением не опознаются.
func MatchAdvertisement(manufacturerData []byte) (Role, bool) {
	if len(manufacturerData) < 2 {
		return 0, false
	}
	d := manufacturerData[1]
	for _, role := range Roles {
		for _, want := range roleTable[role].Discriminators {
			if d == want {
				return role, true
			}
		}
	}
	return 0, false
}
