package main

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"BoostProg/hub"
)

// CustomTheme темная тема панели BoostProg
type CustomTheme struct{}

var _ fyne.Theme = (*CustomTheme)(nil)

// Цвета темы
var (
	backgroundColor  = color.NRGBA{R: 40, G: 42, B: 46, A: 255}
	foregroundColor  = color.NRGBA{R: 235, G: 235, B: 235, A: 255}
	primaryColor     = color.NRGBA{R: 214, G: 40, B: 40, A: 255} // красный LEGO
	secondaryColor   = color.NRGBA{R: 60, G: 63, B: 68, A: 255}
	disabledColor    = color.NRGBA{R: 104, G: 104, B: 104, A: 255}
	hoverColor       = color.NRGBA{R: 240, G: 80, B: 70, A: 255}
	pressedColor     = color.NRGBA{R: 160, G: 25, B: 25, A: 255}
	successColor     = color.NRGBA{R: 76, G: 175, B: 80, A: 255}
	errorColor       = color.NRGBA{R: 244, G: 67, B: 54, A: 255}
	warningColor     = color.NRGBA{R: 255, G: 193, B: 7, A: 255}
	inputBackground  = color.NRGBA{R: 28, G: 29, B: 32, A: 255}
	inputBorderColor = color.NRGBA{R: 90, G: 90, B: 90, A: 255}
	idleColor        = color.NRGBA{R: 150, G: 150, B: 150, A: 255}
)

// Color возвращает цвет по имени
func (t *CustomTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground, theme.ColorNameMenuBackground:
		return backgroundColor
	case theme.ColorNameButton:
		return secondaryColor
	case theme.ColorNameDisabled:
		return disabledColor
	case theme.ColorNameDisabledButton:
		return color.NRGBA{R: 70, G: 70, B: 70, A: 255}
	case theme.ColorNameError:
		return errorColor
	case theme.ColorNameFocus, theme.ColorNameHover:
		return hoverColor
	case theme.ColorNameForeground:
		return foregroundColor
	case theme.ColorNameInputBackground:
		return inputBackground
	case theme.ColorNameInputBorder:
		return inputBorderColor
	case theme.ColorNameOverlayBackground:
		return color.NRGBA{R: 30, G: 30, B: 30, A: 230}
	case theme.ColorNamePressed:
		return pressedColor
	case theme.ColorNamePrimary:
		return primaryColor
	case theme.ColorNameSuccess:
		return successColor
	case theme.ColorNameWarning:
		return warningColor
	default:
		return theme.DarkTheme().Color(name, variant)
	}
}

// Font возвращает шрифт
func (t *CustomTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DarkTheme().Font(style)
}

// Icon возвращает иконку
func (t *CustomTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DarkTheme().Icon(name)
}

// Size возвращает размер элемента
func (t *CustomTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameCaptionText:
		return 11
	case theme.SizeNameHeadingText:
		return 18
	case theme.SizeNamePadding:
		return 6
	case theme.SizeNameSubHeadingText:
		return 16
	case theme.SizeNameText:
		return 14
	default:
		return theme.DarkTheme().Size(name)
	}
}

// stateColor цвет индикатора состояния роли
func stateColor(s hub.State) color.Color {
	switch s {
	case hub.StateReady:
		return successColor
	case hub.StateScanning, hub.StateFound, hub.StateConnecting:
		return warningColor
	case hub.StateDisconnecting:
		return errorColor
	default:
		return idleColor
	}
}

// stateTitle подпись состояния роли
func stateTitle(s hub.State) string {
	switch s {
	case hub.StateIdle:
		return "Не подключен"
	case hub.StateScanning:
		return "Поиск..."
	case hub.StateFound:
		return "Найден"
	case hub.StateConnecting:
		return "Подключение..."
	case hub.StateReady:
		return "Подключен ✓"
	case hub.StateDisconnecting:
		return "Отключение..."
	}
	return s.String()
}
