package main

import (
	"context"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	core "BoostProg/app"
	"BoostProg/automation"
	"BoostProg/hub"
	"BoostProg/logging"
)

// commandTimeout сколько ждать записи команды из панели
const commandTimeout = 5 * time.Second

// refreshInterval период опроса состояний ролей. Переходы scanning/found
// не порождают событий, поэтому панель опрашивает снимок сама.
const refreshInterval = 500 * time.Millisecond

// MainGUI основной интерфейс приложения
type MainGUI struct {
	window fyne.Window
	app    *core.App
	ctx    context.Context

	// Виджеты
	statusLabel      *widget.Label
	connectButton    *widget.Button
	disconnectButton *widget.Button
	eventList        *widget.List

	// Панели
	devicePanels   map[hub.Role]*DevicePanel
	behaviorChecks map[string]*widget.Check

	events  *EventLog
	syncing bool
}

// NewMainGUI создает новый GUI поверх собранного приложения
func NewMainGUI(ctx context.Context, window fyne.Window, a *core.App) *MainGUI {
	return &MainGUI{
		window:         window,
		app:            a,
		ctx:            ctx,
		devicePanels:   make(map[hub.Role]*DevicePanel),
		behaviorChecks: make(map[string]*widget.Check),
		events:         NewEventLog(eventLogSize),
	}
}

// BuildUI строит интерфейс приложения
func (gui *MainGUI) BuildUI() fyne.CanvasObject {
	toolbar := gui.createToolbar()

	hubs := container.NewVBox()
	for _, role := range hub.Roles {
		panel := NewDevicePanel(gui, role)
		gui.devicePanels[role] = panel
		hubs.Add(panel.GetContainer())
	}
	hubsScroll := container.NewVScroll(container.NewPadded(hubs))
	hubsScroll.SetMinSize(fyne.NewSize(520, 600))

	right := container.NewVSplit(gui.createBehaviorsPanel(), gui.createEventsPanel())
	right.SetOffset(0.4)

	split := container.NewHSplit(hubsScroll, right)
	split.SetOffset(0.55)

	gui.refreshHubs()
	return container.NewBorder(toolbar, nil, nil, nil, split)
}

// createToolbar создает панель инструментов
func (gui *MainGUI) createToolbar() fyne.CanvasObject {
	gui.connectButton = widget.NewButtonWithIcon("Подключить", theme.SearchIcon(), gui.connect)
	gui.connectButton.Importance = widget.HighImportance

	gui.disconnectButton = widget.NewButtonWithIcon("Отключить", theme.CancelIcon(), gui.disconnect)
	gui.disconnectButton.Disable()

	framesButton := widget.NewButtonWithIcon("Кадры LWP", theme.DocumentIcon(), func() {
		NewProtocolTestDialog(gui, gui.window).Show()
	})

	gui.statusLabel = widget.NewLabel("Не подключено")
	gui.statusLabel.TextStyle.Bold = true

	return container.NewVBox(
		container.NewHBox(
			gui.connectButton,
			gui.disconnectButton,
			widget.NewSeparator(),
			framesButton,
			layout.NewSpacer(),
			gui.statusLabel,
		),
		widget.NewSeparator(),
	)
}

// createBehaviorsPanel создает переключатели автоматизаций
func (gui *MainGUI) createBehaviorsPanel() fyne.CanvasObject {
	title := canvas.NewText("Автоматизации", foregroundColor)
	title.TextSize = 16
	title.TextStyle.Bold = true

	list := container.NewVBox()
	for _, name := range automation.Available() {
		name := name
		check := widget.NewCheck(name, nil)
		check.OnChanged = func(on bool) {
			if gui.syncing {
				return
			}
			gui.toggleBehavior(name, on)
		}
		gui.behaviorChecks[name] = check
		list.Add(check)
	}

	hint := widget.NewLabel("Автоматизации из конфигурации включаются после подключения хаба")
	hint.Wrapping = fyne.TextWrapWord
	hint.TextStyle.Italic = true

	return container.NewBorder(
		container.NewVBox(title, widget.NewSeparator()),
		hint, nil, nil,
		container.NewVScroll(list),
	)
}

// createEventsPanel создает журнал событий сессии
func (gui *MainGUI) createEventsPanel() fyne.CanvasObject {
	title := canvas.NewText("События", foregroundColor)
	title.TextSize = 16
	title.TextStyle.Bold = true

	gui.eventList = widget.NewList(
		gui.events.Len,
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(gui.events.Line(id))
		},
	)

	clearButton := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		gui.events.Clear()
		gui.eventList.Refresh()
	})

	return container.NewBorder(
		container.NewVBox(container.NewHBox(title, layout.NewSpacer(), clearButton), widget.NewSeparator()),
		nil, nil, nil,
		gui.eventList,
	)
}

// Watch читает события сессии до закрытия канала или отмены контекста и
// переносит их в интерфейс
func (gui *MainGUI) Watch(updates <-chan hub.Update) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gui.ctx.Done():
			return
		case <-ticker.C:
			fyne.Do(gui.refreshHubs)
		case u, ok := <-updates:
			if !ok {
				return
			}
			gui.events.Add(u)
			if u.Kind == hub.Connected {
				go gui.enableConfigured()
			}
			fyne.Do(func() {
				gui.eventList.Refresh()
				gui.refreshHubs()
				gui.refreshBehaviors()
			})
		}
	}
}

func (gui *MainGUI) enableConfigured() {
	if err := gui.app.EnableConfigured(gui.ctx); err != nil {
		logging.ForComponent("gui").Warnf("Не все автоматизации включены: %v", err)
	}
	fyne.Do(gui.refreshBehaviors)
}

// refreshHubs обновляет карточки ролей и кнопки подключения. Вызывается в
// потоке UI.
func (gui *MainGUI) refreshHubs() {
	active, ready := 0, 0
	for role, panel := range gui.devicePanels {
		info := gui.app.Session.Info(role)
		panel.Update(info)
		if info.Link.State != hub.StateIdle {
			active++
		}
		if info.Link.State == hub.StateReady {
			ready++
		}
	}

	switch {
	case ready > 0:
		gui.statusLabel.SetText("Подключено ✓")
	case active > 0:
		gui.statusLabel.SetText("Поиск хабов...")
	default:
		gui.statusLabel.SetText("Не подключено")
	}

	if active > 0 {
		gui.connectButton.Disable()
		gui.disconnectButton.Enable()
	} else {
		gui.connectButton.Enable()
		gui.disconnectButton.Disable()
	}
}

// refreshBehaviors приводит переключатели к содержимому реестра
func (gui *MainGUI) refreshBehaviors() {
	gui.syncing = true
	defer func() { gui.syncing = false }()
	for name, check := range gui.behaviorChecks {
		if active := gui.app.Registry.Has(name); check.Checked != active {
			check.SetChecked(active)
		}
	}
}

func (gui *MainGUI) toggleBehavior(name string, on bool) {
	go func() {
		var err error
		if on {
			err = gui.app.Enable(gui.ctx, name)
		} else {
			gui.app.Registry.Unregister(gui.ctx, name)
		}
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, gui.window)
			}
			gui.refreshBehaviors()
		})
	}()
}

// connect запускает общее сканирование обеих ролей
func (gui *MainGUI) connect() {
	if err := gui.app.Controller.Connect(); err != nil {
		gui.showError(err)
		return
	}
	gui.refreshHubs()
}

func (gui *MainGUI) disconnect() {
	go func() {
		err := gui.app.Controller.Disconnect()
		fyne.Do(func() {
			if err != nil {
				gui.showError(err)
			}
			gui.refreshHubs()
		})
	}()
}

// runCommand выполняет команду хаба вне потока UI. Ошибка показывается
// диалогом.
func (gui *MainGUI) runCommand(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(gui.ctx, commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logging.ForComponent("gui").Warnf("Команда не выполнена: %v", err)
			fyne.Do(func() { gui.showError(err) })
		}
	}()
}

// showError показывает ошибку. Вызывается в потоке UI.
func (gui *MainGUI) showError(err error) {
	dialog.ShowError(err, gui.window)
}
