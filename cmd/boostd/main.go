package main

/*
* boostd - демон без графического интерфейса: подключает хабы, включает
* автоматизации из конфигурации, поднимает HTTP API и MQTT мост.
 */

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"BoostProg/app"
	"BoostProg/automation"
	"BoostProg/config"
	"BoostProg/hub"
	"BoostProg/logging"
	"BoostProg/lwp"
)

func loadConfig(c *cli.Context) (config.Config, error) {
	if err := config.LoadDotEnv(c.GlobalString("env")); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return config.Config{}, err
	}
	if level := c.GlobalString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	logging.Setup(cfg.LogLevel)
	return cfg, nil
}

func runCommand(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	radio, err := hub.NewBluetoothRadio()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	a, err := app.New(ctx, cfg, radio)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer a.Close(context.Background())

	updates, unsubscribe := a.Session.Subscribe()
	defer unsubscribe()
	if err := a.Start(ctx); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	go func() {
		if err := a.ServeAPI(); err != nil {
			PrintErr("HTTP API: %v", err)
			stop()
		}
	}()

	if err := a.Controller.Connect(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Println(Cyan("Поиск хабов..."))

	for {
		select {
		case <-ctx.Done():
			fmt.Println(Yellow("Остановка"))
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			printUpdate(u, c.Bool("quiet"))
			if u.Kind == hub.Connected {
				_ = a.EnableConfigured(ctx)
			}
		}
	}
}

func printUpdate(u hub.Update, quiet bool) {
	ts := u.At.Format("15:04:05.000")
	title := u.Role.Info().Title
	switch u.Kind {
	case hub.Connected:
		fmt.Printf("%s %s %s\n", ts, Green("ПОДКЛЮЧЕН"), title)
	case hub.Disconnected:
		fmt.Printf("%s %s %s\n", ts, Yellow("ОТКЛЮЧЕН"), title)
	case hub.ConnectionFailed:
		fmt.Printf("%s %s %s: %v\n", ts, Red("ОШИБКА"), title, u.Err)
	case hub.Notification:
		if quiet || u.Event == nil {
			return
		}
		fmt.Printf("%s %s %s [%s]\n", ts, Magenta(u.Role.String()), lwp.Describe(u.Event), lwp.BytesToHex(u.Event.Raw()))
	}
}

func behaviorsCommand(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	enabled := map[string]bool{}
	for _, name := range cfg.Behaviors.Enabled {
		enabled[name] = true
	}
	for _, name := range automation.Available() {
		mark := " "
		if enabled[name] {
			mark = Green("*")
		}
		fmt.Printf("%s %s\n", mark, name)
	}
	return nil
}

// PrintErr выводит сообщение об ошибке в stderr
func PrintErr(msg string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, Red(fmt.Sprintf(msg, args...)))
}

func Cyan(s string) string    { return color.New(color.FgHiCyan).SprintFunc()(s) }
func Green(s string) string   { return color.New(color.FgHiGreen).SprintFunc()(s) }
func Magenta(s string) string { return color.New(color.FgHiMagenta).SprintFunc()(s) }
func Yellow(s string) string  { return color.New(color.FgHiYellow).SprintFunc()(s) }
func Red(s string) string     { return color.New(color.FgHiRed).SprintFunc()(s) }

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "boostd"
	cliApp.Usage = "управление хабами LEGO Boost и LPF2 без графического интерфейса"
	cliApp.Version = "0.1.0"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "YAML файл конфигурации",
			EnvVar: "BOOSTPROG_CONFIG",
		},
		cli.StringFlag{
			Name:  "env",
			Value: ".env",
			Usage: "файл переменных окружения",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "уровень журнала (trace, debug, info, warn, error)",
		},
	}
	cliApp.Commands = []cli.Command{
		cli.Command{
			Name:  "run",
			Usage: "Подключить хабы и запустить автоматизации",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "quiet, q",
					Usage: "Не печатать уведомления датчиков",
				},
			},
			Action: runCommand,
		},
		cli.Command{
			Name:   "behaviors",
			Usage:  "Список автоматизаций (* - включенные в конфигурации)",
			Action: behaviorsCommand,
		},
		framesCommand(),
	}
	if err := cliApp.Run(os.Args); err != nil {
		PrintErr("%v", err)
		os.Exit(1)
	}
}
