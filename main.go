package main

import (
	"context"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	core "BoostProg/app"
	"BoostProg/config"
	"BoostProg/hub"
	"BoostProg/logging"
)

func main() {
	log := logging.ForComponent("gui")
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Ошибка чтения .env: %v", err)
	}
	cfg, err := config.Load(os.Getenv("BOOSTPROG_CONFIG"))
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	logging.Setup(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	radio, err := hub.NewBluetoothRadio()
	if err != nil {
		log.Fatalf("Bluetooth недоступен: %v", err)
	}
	a, err := core.New(ctx, cfg, radio)
	if err != nil {
		log.Fatalf("Ошибка запуска: %v", err)
	}

	myApp := app.New()
	myApp.Settings().SetTheme(&CustomTheme{})

	window := myApp.NewWindow("BoostProg - LEGO Boost и LPF2")
	window.SetMaster()
	window.Resize(fyne.NewSize(1280, 860))

	gui := NewMainGUI(ctx, window, a)
	window.SetContent(gui.BuildUI())

	updates, unsubscribe := a.Session.Subscribe()
	if err := a.Start(ctx); err != nil {
		log.Fatalf("Ошибка запуска: %v", err)
	}
	go gui.Watch(updates)
	go func() {
		if err := a.ServeAPI(); err != nil {
			log.Errorf("HTTP API: %v", err)
		}
	}()

	window.ShowAndRun()

	// Отключаемся при закрытии окна
	unsubscribe()
	cancel()
	a.Close(context.Background())
}
