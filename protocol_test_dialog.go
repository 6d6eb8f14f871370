package main

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"BoostProg/hub"
	"BoostProg/lwp"
)

// framePreset готовый кадр для ручной отправки
type framePreset struct {
	Title string
	Frame lwp.Frame
}

// framePresets собирает типовые кадры для таблицы портов роли. Кадры,
// которым не хватает назначенного порта, пропускаются.
func framePresets(ports lwp.PortMap) []framePreset {
	actions := []struct {
		title  string
		action lwp.Action
	}{
		{"Светодиод: красный", lwp.SetLEDColor{Color: lwp.ColorRed}},
		{"Светодиод: зеленый", lwp.SetLEDColor{Color: lwp.ColorGreen}},
		{"Светодиод: выкл", lwp.SetLEDColor{Color: lwp.ColorOff}},
		{"Мотор A 50% 1 с", lwp.RunMotor{Port: lwp.PortInternalA, Power: 50, DurationMs: 1000, Direction: lwp.Clockwise}},
		{"Моторы AB 50% 1 с", lwp.RunMotor{Port: lwp.PortInternalAB, Power: 50, DurationMs: 1000, Direction: lwp.Clockwise}},
		{"Моторы навстречу 50% 1 с", lwp.RunMotorsOpposed{Power: 50, DurationMs: 1000}},
		{"Внешний мотор 50% 1 с", lwp.RunMotor{Port: lwp.PortExternalMotor, Power: 50, DurationMs: 1000, Direction: lwp.Clockwise}},
		{"Уведомления кнопки", lwp.SetNotifications{Sensor: lwp.SensorButton, Enabled: true}},
		{"Уведомления наклона", lwp.SetNotifications{Sensor: lwp.SensorTilt, Enabled: true}},
		{"Уведомления датчика цвета", lwp.SetNotifications{Sensor: lwp.SensorColor, Enabled: true}},
	}

	var presets []framePreset
	for _, a := range actions {
		frame, err := lwp.Encode(a.action, ports)
		if err != nil {
			continue
		}
		presets = append(presets, framePreset{Title: a.title, Frame: frame})
	}
	return presets
}

// ProtocolTestDialog диалог ручной отправки и разбора кадров LWP
type ProtocolTestDialog struct {
	gui       *MainGUI
	window    fyne.Window
	container *fyne.Container

	roleSelect  *widget.Select
	dataEntry   *widget.Entry
	resultLabel *widget.Label
}

// NewProtocolTestDialog создает диалог тестирования протокола
func NewProtocolTestDialog(gui *MainGUI, window fyne.Window) *ProtocolTestDialog {
	return &ProtocolTestDialog{
		gui:    gui,
		window: window,
	}
}

// Show показывает диалог тестирования протокола
func (d *ProtocolTestDialog) Show() {
	d.buildUI()

	content := container.NewVScroll(container.NewPadded(d.container))

	testDialog := dialog.NewCustom("Кадры LWP", "Закрыть", content, d.window)
	testDialog.Resize(fyne.NewSize(600, 460))
	testDialog.Show()
}

func (d *ProtocolTestDialog) role() (hub.Role, error) {
	return hub.ParseRole(d.roleSelect.Selected)
}

// buildUI строит интерфейс диалога
func (d *ProtocolTestDialog) buildUI() {
	d.container = container.NewVBox()

	title := widget.NewLabel("Отправка кадров в хаб и разбор входящих кадров")
	title.TextStyle.Bold = true
	title.Alignment = fyne.TextAlignCenter
	d.container.Add(title)
	d.container.Add(widget.NewSeparator())

	roles := make([]string, len(hub.Roles))
	for i, r := range hub.Roles {
		roles[i] = r.String()
	}

	d.dataEntry = widget.NewEntry()
	d.dataEntry.SetPlaceHolder("Например: 08 00 81 32 11 51 00 09")

	presetSelect := widget.NewSelect(nil, nil)
	presetSelect.PlaceHolder = "Готовые кадры"
	var presets []framePreset
	presetSelect.OnChanged = func(selected string) {
		for _, p := range presets {
			if p.Title == selected {
				d.dataEntry.SetText(p.Frame.String())
				return
			}
		}
	}

	d.roleSelect = widget.NewSelect(roles, func(string) {
		role, err := d.role()
		if err != nil {
			return
		}
		presets = framePresets(d.gui.app.Session.Ports(role))
		titles := make([]string, len(presets))
		for i, p := range presets {
			titles[i] = p.Title
		}
		presetSelect.Options = titles
		presetSelect.ClearSelected()
		presetSelect.Refresh()
	})
	d.roleSelect.SetSelected(hub.RoleA.String())

	d.resultLabel = widget.NewLabel("")
	d.resultLabel.Wrapping = fyne.TextWrapWord

	sendButton := widget.NewButton("Отправить", d.send)
	decodeButton := widget.NewButton("Разобрать как входящий", d.decode)

	d.container.Add(widget.NewLabel("Хаб:"))
	d.container.Add(d.roleSelect)
	d.container.Add(widget.NewLabel("Данные (HEX):"))
	d.container.Add(d.dataEntry)
	d.container.Add(presetSelect)
	d.container.Add(container.NewHBox(sendButton, decodeButton))
	d.container.Add(widget.NewSeparator())
	d.container.Add(d.resultLabel)
}

func (d *ProtocolTestDialog) send() {
	role, err := d.role()
	if err != nil {
		d.showResult(fmt.Sprintf("Ошибка: %v", err), true)
		return
	}
	data, err := lwp.HexToBytes(d.dataEntry.Text)
	if err != nil {
		d.showResult(fmt.Sprintf("Ошибка преобразования данных: %v", err), true)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		err := d.gui.app.Controller.SendRaw(ctx, role, data)
		fyne.Do(func() {
			if err != nil {
				d.showResult(fmt.Sprintf("❌ Ошибка отправки: %v", err), true)
				return
			}
			d.showResult(fmt.Sprintf("✅ Отправлено в %s (%d байт): %s", role.Info().Title, len(data), lwp.BytesToHex(data)), false)
		})
	}()
}

func (d *ProtocolTestDialog) decode() {
	role, err := d.role()
	if err != nil {
		d.showResult(fmt.Sprintf("Ошибка: %v", err), true)
		return
	}
	data, err := lwp.HexToBytes(d.dataEntry.Text)
	if err != nil {
		d.showResult(fmt.Sprintf("Ошибка преобразования данных: %v", err), true)
		return
	}
	ev, err := lwp.Decode(data, d.gui.app.Session.Ports(role))
	if err != nil {
		d.showResult(fmt.Sprintf("❌ Кадр не разобран: %v", err), true)
		return
	}
	d.showResult(fmt.Sprintf("%T: %s", ev, lwp.Describe(ev)), false)
}

// showResult показывает результат операции
func (d *ProtocolTestDialog) showResult(message string, isError bool) {
	d.resultLabel.SetText(message)
	d.resultLabel.TextStyle.Bold = isError
	d.resultLabel.Refresh()
}
