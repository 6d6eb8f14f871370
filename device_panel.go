package main

import (
	"context"
	"fmt"
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"BoostProg/hub"
	"BoostProg/lwp"
)

// motorPorts порты, доступные в панели мотора
var motorPorts = []string{
	lwp.PortInternalA.String(),
	lwp.PortInternalB.String(),
	lwp.PortInternalAB.String(),
	lwp.PortExternalMotor.String(),
}

// DevicePanel карточка одной роли: состояние, устройства на портах и
// ручное управление
type DevicePanel struct {
	gui  *MainGUI
	role hub.Role

	indicator   *canvas.Circle
	stateLabel  *widget.Label
	peerLabel   *widget.Label
	attachedBox *fyne.Container
	colorPort   *widget.Select
	motorPort   *widget.Select

	container *fyne.Container
	syncing   bool
}

// NewDevicePanel создает карточку роли
func NewDevicePanel(gui *MainGUI, role hub.Role) *DevicePanel {
	p := &DevicePanel{gui: gui, role: role}
	p.container = p.buildUI()
	return p
}

// GetContainer возвращает контейнер панели
func (p *DevicePanel) GetContainer() fyne.CanvasObject {
	return p.container
}

func (p *DevicePanel) buildUI() *fyne.Container {
	title := canvas.NewText(p.role.Info().Title, foregroundColor)
	title.TextSize = 16
	title.TextStyle.Bold = true

	p.indicator = canvas.NewCircle(idleColor)
	p.indicator.Resize(fyne.NewSize(12, 12))
	p.stateLabel = widget.NewLabel(stateTitle(hub.StateIdle))
	p.peerLabel = widget.NewLabel("")
	p.peerLabel.TextStyle.Italic = true

	header := container.NewHBox(
		container.NewGridWrap(fyne.NewSize(14, 14), p.indicator),
		title,
		layout.NewSpacer(),
		p.stateLabel,
	)

	p.attachedBox = container.NewVBox()

	card := container.NewVBox(
		header,
		p.peerLabel,
		widget.NewSeparator(),
		p.createPortsControls(),
		widget.NewLabelWithStyle("Устройства на портах", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		p.attachedBox,
		widget.NewSeparator(),
		p.createLEDControls(),
		widget.NewSeparator(),
		p.createMotorControls(),
		widget.NewSeparator(),
		p.createSensorControls(),
	)

	return container.NewStack(
		&canvas.Rectangle{
			FillColor:   color.NRGBA{R: 52, G: 54, B: 58, A: 255},
			StrokeColor: color.NRGBA{R: 90, G: 90, B: 90, A: 255},
			StrokeWidth: 1,
		},
		container.NewPadded(card),
	)
}

// createPortsControls создает выбор букв для датчика цвета и внешнего мотора
func (p *DevicePanel) createPortsControls() fyne.CanvasObject {
	letters := []string{lwp.LetterC.String(), lwp.LetterD.String()}
	assign := func(port lwp.Port) func(string) {
		return func(value string) {
			if p.syncing || value == "" {
				return
			}
			letter, err := lwp.ParseLetter(value)
			if err != nil {
				p.gui.showError(err)
				return
			}
			if err := p.gui.app.Controller.AssignPort(p.role, port, letter); err != nil {
				p.gui.showError(err)
			}
		}
	}
	p.colorPort = widget.NewSelect(letters, assign(lwp.PortColorSensor))
	p.colorPort.PlaceHolder = "-"
	p.motorPort = widget.NewSelect(letters, assign(lwp.PortExternalMotor))
	p.motorPort.PlaceHolder = "-"

	return container.NewGridWithColumns(4,
		widget.NewLabel("Датчик цвета:"), p.colorPort,
		widget.NewLabel("Внешний мотор:"), p.motorPort,
	)
}

// createLEDControls создает выбор цвета встроенного светодиода
func (p *DevicePanel) createLEDControls() fyne.CanvasObject {
	names := make([]string, len(lwp.LEDColors))
	for i, c := range lwp.LEDColors {
		names[i] = c.String()
	}
	colorSelect := widget.NewSelect(names, nil)
	colorSelect.SetSelected(lwp.ColorRed.String())

	setBtn := widget.NewButtonWithIcon("Установить", theme.ColorPaletteIcon(), func() {
		c, err := lwp.ParseColor(colorSelect.Selected)
		if err != nil {
			p.gui.showError(err)
			return
		}
		p.gui.runCommand(func(ctx context.Context) error {
			return p.gui.app.Controller.SetLEDColor(ctx, p.role, c)
		})
	})

	return container.NewVBox(
		widget.NewLabel("Цвет светодиода:"),
		container.NewBorder(nil, nil, nil, setBtn, colorSelect),
	)
}

// createMotorControls создает элементы управления моторами
func (p *DevicePanel) createMotorControls() fyne.CanvasObject {
	portSelect := widget.NewSelect(motorPorts, nil)
	portSelect.SetSelected(lwp.PortInternalA.String())

	powerSlider := widget.NewSlider(0, 100)
	powerSlider.SetValue(50)
	powerValueLabel := widget.NewLabel("50%")
	powerSlider.OnChanged = func(value float64) {
		powerValueLabel.SetText(fmt.Sprintf("%.0f%%", value))
	}

	durationEntry := widget.NewEntry()
	durationEntry.SetText("1000")

	params := func() (lwp.Port, int, int, error) {
		port, err := lwp.ParsePort(portSelect.Selected)
		if err != nil {
			return 0, 0, 0, err
		}
		ms, err := strconv.Atoi(durationEntry.Text)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: длительность %q", lwp.ErrInvalidParameter, durationEntry.Text)
		}
		return port, int(powerSlider.Value), ms, nil
	}

	runDir := func(dir lwp.Direction) func() {
		return func() {
			port, power, ms, err := params()
			if err != nil {
				p.gui.showError(err)
				return
			}
			p.gui.runCommand(func(ctx context.Context) error {
				return p.runMotor(ctx, port, power, ms, dir)
			})
		}
	}

	forwardBtn := widget.NewButton("▶ по часовой", runDir(lwp.Clockwise))
	backwardBtn := widget.NewButton("◀ против", runDir(lwp.CounterClockwise))
	opposedBtn := widget.NewButton("⇆ навстречу", func() {
		_, power, ms, err := params()
		if err != nil {
			p.gui.showError(err)
			return
		}
		p.gui.runCommand(func(ctx context.Context) error {
			return p.gui.app.Controller.RunInternalMotorsOpposed(ctx, p.role, power, ms)
		})
	})

	return container.NewVBox(
		widget.NewLabel("Моторы:"),
		container.NewGridWithColumns(2, portSelect, durationEntry),
		container.NewBorder(nil, nil, nil, powerValueLabel, powerSlider),
		container.NewGridWithColumns(3, forwardBtn, backwardBtn, opposedBtn),
	)
}

func (p *DevicePanel) runMotor(ctx context.Context, port lwp.Port, power, ms int, dir lwp.Direction) error {
	c := p.gui.app.Controller
	switch port {
	case lwp.PortInternalA, lwp.PortInternalB:
		return c.RunInternalMotor(ctx, p.role, port, power, ms, dir)
	case lwp.PortInternalAB:
		return c.RunInternalMotors(ctx, p.role, power, ms, dir)
	case lwp.PortExternalMotor:
		return c.RunExternalMotor(ctx, p.role, power, ms, dir)
	}
	return fmt.Errorf("%w: порт %s не мотор", lwp.ErrInvalidParameter, port)
}

// createSensorControls создает переключатели уведомлений датчиков. При
// ошибке отправки переключатель возвращается в прежнее положение.
func (p *DevicePanel) createSensorControls() fyne.CanvasObject {
	grid := container.NewGridWithColumns(3)
	for s := lwp.SensorColor; s <= lwp.SensorButton; s++ {
		sensor := s
		check := widget.NewCheck(sensor.String(), nil)
		check.OnChanged = func(on bool) {
			if p.syncing {
				return
			}
			p.gui.runCommand(func(ctx context.Context) error {
				err := p.toggleSensor(ctx, sensor, on)
				if err != nil {
					fyne.Do(func() {
						p.syncing = true
						check.SetChecked(!on)
						p.syncing = false
					})
				}
				return err
			})
		}
		grid.Add(check)
	}
	return container.NewVBox(widget.NewLabel("Уведомления датчиков:"), grid)
}

func (p *DevicePanel) toggleSensor(ctx context.Context, sensor lwp.Sensor, on bool) error {
	if on {
		return p.gui.app.Controller.ArmSensor(ctx, p.role, sensor)
	}
	return p.gui.app.Controller.DisarmSensor(ctx, p.role, sensor)
}

// Update обновляет карточку по снимку роли. Вызывается в потоке UI.
func (p *DevicePanel) Update(info hub.HubInfo) {
	p.indicator.FillColor = stateColor(info.Link.State)
	p.indicator.Refresh()
	p.stateLabel.SetText(stateTitle(info.Link.State))

	if info.Link.Peer != "" {
		p.peerLabel.SetText(fmt.Sprintf("Адрес: %s, с %s", info.Link.Peer, info.Link.Since.Format("15:04:05")))
	} else {
		p.peerLabel.SetText("")
	}

	p.syncing = true
	p.syncLetter(p.colorPort, info.Ports.ColorSensor)
	p.syncLetter(p.motorPort, info.Ports.ExternalMotor)
	p.syncing = false

	p.attachedBox.Objects = nil
	if len(info.Attached) == 0 {
		empty := widget.NewLabel("Нет подключенных устройств")
		empty.TextStyle.Italic = true
		p.attachedBox.Add(empty)
	}
	for _, a := range info.Attached {
		p.attachedBox.Add(p.createDeviceRow(a))
	}
	p.attachedBox.Refresh()
}

func (p *DevicePanel) syncLetter(sel *widget.Select, letter lwp.PortLetter) {
	if letter == lwp.LetterNone {
		sel.ClearSelected()
		return
	}
	if sel.Selected != letter.String() {
		sel.SetSelected(letter.String())
	}
}

// createDeviceRow создает строку устройства на порту
func (p *DevicePanel) createDeviceRow(a hub.Attachment) fyne.CanvasObject {
	var iconRes fyne.Resource
	switch a.Device {
	case lwp.DEVICE_TYPE_MOTOR, lwp.DEVICE_TYPE_EXTERNAL_MOTOR, lwp.DEVICE_TYPE_INTERNAL_MOTOR:
		iconRes = theme.StorageIcon()
	case lwp.DEVICE_TYPE_RGB_LIGHT:
		iconRes = theme.VisibilityIcon()
	case lwp.DEVICE_TYPE_TILT_SENSOR, lwp.DEVICE_TYPE_INTERNAL_TILT:
		iconRes = theme.ViewRefreshIcon()
	case lwp.DEVICE_TYPE_COLOR_DISTANCE, lwp.DEVICE_TYPE_MOTION_SENSOR:
		iconRes = theme.SearchIcon()
	default:
		iconRes = theme.ComputerIcon()
	}

	name := a.Name
	if name == "" {
		name = fmt.Sprintf("0x%02x", uint16(a.Device))
	}
	info := widget.NewLabel(fmt.Sprintf("Порт 0x%02x (%s): %s", a.PortID, a.Port, name))
	return container.NewHBox(widget.NewIcon(iconRes), info)
}
