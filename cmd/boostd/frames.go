package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"BoostProg/lwp"
)

// portFlags флаги назначения портов C/D для кодирования без хаба
var portFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "color-port",
		Usage: "Буква порта датчика цвета (C или D)",
	},
	cli.StringFlag{
		Name:  "motor-port",
		Usage: "Буква порта внешнего мотора (C или D)",
	},
}

func portsFromFlags(c *cli.Context) (lwp.PortMap, error) {
	var ports lwp.PortMap
	for _, a := range []struct {
		flag string
		port lwp.Port
	}{
		{"color-port", lwp.PortColorSensor},
		{"motor-port", lwp.PortExternalMotor},
	} {
		value := c.String(a.flag)
		if value == "" {
			continue
		}
		letter, err := lwp.ParseLetter(value)
		if err != nil {
			return ports, err
		}
		if ports, err = ports.With(a.port, letter); err != nil {
			return ports, err
		}
	}
	return ports, nil
}

func intArg(c *cli.Context, i int, name string) (int, error) {
	v, err := strconv.Atoi(c.Args().Get(i))
	if err != nil {
		return 0, fmt.Errorf("%s: ожидается число, получено %q", name, c.Args().Get(i))
	}
	return v, nil
}

func printFrame(c *cli.Context, action lwp.Action) error {
	ports, err := portsFromFlags(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	frame, err := lwp.Encode(action, ports)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Println(frame.String())
	return nil
}

func frameLEDCommand(c *cli.Context) (err error) {
	color, err := lwp.ParseColor(c.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return printFrame(c, lwp.SetLEDColor{Color: color})
}

func frameMotorCommand(c *cli.Context) (err error) {
	if c.NArg() != 3 {
		return cli.NewExitError("использование: frames motor <порт> <мощность> <мс>", 1)
	}
	port, err := lwp.ParsePort(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	power, err := intArg(c, 1, "мощность")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	ms, err := intArg(c, 2, "длительность")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	dir := lwp.Clockwise
	if c.Bool("ccw") {
		dir = lwp.CounterClockwise
	}
	return printFrame(c, lwp.RunMotor{Port: port, Power: power, DurationMs: ms, Direction: dir})
}

func frameOpposedCommand(c *cli.Context) (err error) {
	power, err := intArg(c, 0, "мощность")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	ms, err := intArg(c, 1, "длительность")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return printFrame(c, lwp.RunMotorsOpposed{Power: power, DurationMs: ms})
}

func frameNotifyCommand(c *cli.Context) (err error) {
	sensor, err := lwp.ParseSensor(c.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return printFrame(c, lwp.SetNotifications{Sensor: sensor, Enabled: !c.Bool("off")})
}

func frameDecodeCommand(c *cli.Context) (err error) {
	ports, err := portsFromFlags(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	data, err := lwp.HexToBytes(c.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	ev, err := lwp.Decode(data, ports)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Printf("%T: %s\n", ev, lwp.Describe(ev))
	return nil
}

func framesCommand() cli.Command {
	return cli.Command{
		Name:  "frames",
		Usage: "Собрать или разобрать кадр протокола без подключения к хабу",
		Subcommands: []cli.Command{
			cli.Command{
				Name:      "led",
				Usage:     "Кадр цвета светодиода",
				ArgsUsage: "<цвет>",
				Action:    frameLEDCommand,
			},
			cli.Command{
				Name:      "motor",
				Usage:     "Кадр запуска мотора",
				ArgsUsage: "<порт> <мощность> <мс>",
				Flags: append([]cli.Flag{
					cli.BoolFlag{
						Name:  "ccw",
						Usage: "Против часовой стрелки",
					},
				}, portFlags...),
				Action: frameMotorCommand,
			},
			cli.Command{
				Name:      "opposed",
				Usage:     "Кадр запуска встроенных моторов навстречу",
				ArgsUsage: "<мощность> <мс>",
				Action:    frameOpposedCommand,
			},
			cli.Command{
				Name:      "notify",
				Usage:     "Кадр включения уведомлений датчика",
				ArgsUsage: "<датчик>",
				Flags: append([]cli.Flag{
					cli.BoolFlag{
						Name:  "off",
						Usage: "Выключить уведомления",
					},
				}, portFlags...),
				Action: frameNotifyCommand,
			},
			cli.Command{
				Name:      "decode",
				Usage:     "Разобрать входящий кадр",
				ArgsUsage: "<hex>",
				Flags:     portFlags,
				Action:    frameDecodeCommand,
			},
		},
	}
}
