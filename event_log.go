package main

import (
	"fmt"
	"sync"

	"BoostProg/hub"
	"BoostProg/lwp"
)

// eventLogSize сколько последних событий держит панель
const eventLogSize = 200

// EventLog кольцевой журнал событий сессии для панели событий
type EventLog struct {
	mu    sync.Mutex
	lines []string
	size  int
}

// NewEventLog создает журнал на size строк
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = eventLogSize
	}
	return &EventLog{size: size}
}

// Add добавляет событие. Новые строки идут первыми.
func (l *EventLog) Add(u hub.Update) {
	line := formatUpdate(u)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append([]string{line}, l.lines...)
	if len(l.lines) > l.size {
		l.lines = l.lines[:l.size]
	}
}

// Len количество строк
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Line строка по индексу, пустая за пределами журнала
func (l *EventLog) Line(i int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.lines) {
		return ""
	}
	return l.lines[i]
}

// Clear очищает журнал
func (l *EventLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}

func formatUpdate(u hub.Update) string {
	ts := u.At.Format("15:04:05.000")
	title := u.Role.Info().Title
	switch u.Kind {
	case hub.Connected:
		return fmt.Sprintf("%s  %s: подключен", ts, title)
	case hub.Disconnected:
		return fmt.Sprintf("%s  %s: отключен", ts, title)
	case hub.ConnectionFailed:
		return fmt.Sprintf("%s  %s: ошибка подключения: %v", ts, title, u.Err)
	case hub.Notification:
		if u.Event == nil {
			return fmt.Sprintf("%s  %s: пустое уведомление", ts, title)
		}
		return fmt.Sprintf("%s  %s: %s [%s]", ts, title, lwp.Describe(u.Event), lwp.BytesToHex(u.Event.Raw()))
	}
	return fmt.Sprintf("%s  %s: %s", ts, title, u.Kind)
}
