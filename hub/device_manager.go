package hub

import (
	"context"
	"fmt"

	"BoostProg/logging"
	"BoostProg/lwp"
)

// Controller высокоуровневые команды хабов поверх сессии. Кадр
// собирается с таблицей портов роли, затем отправляется один раз.
type Controller struct {
	session *Session
}

// NewController создает контроллер
func NewController(session *Session) *Controller {
	return &Controller{session: session}
}

// Session возвращает сессию контроллера
func (c *Controller) Session() *Session {
	return c.session
}

// Connect подключает хабы обеих ролей
func (c *Controller) Connect() error {
	return c.session.Connect()
}

// Disconnect отключает хабы
func (c *Controller) Disconnect() error {
	return c.session.Disconnect()
}

func (c *Controller) run(ctx context.Context, role Role, action lwp.Action) error {
	frame, err := lwp.Encode(action, c.session.Ports(role))
	if err != nil {
		return err
	}
	return c.session.Send(ctx, role, frame)
}

// SetLEDColor устанавливает цвет встроенного светодиода
func (c *Controller) SetLEDColor(ctx context.Context, role Role, color lwp.Color) error {
	logging.ForRole(role.String()).Debugf("Установка цвета светодиода: %s", color)
	return c.run(ctx, role, lwp.SetLEDColor{Color: color})
}

// RunInternalMotor запускает встроенный мотор A или B на время
func (c *Controller) RunInternalMotor(ctx context.Context, role Role, which lwp.Port, power, durationMs int, dir lwp.Direction) error {
	if which != lwp.PortInternalA && which != lwp.PortInternalB {
		return fmt.Errorf("%w: %s не встроенный мотор", lwp.ErrInvalidParameter, which)
	}
	logging.ForRole(role.String()).Debugf("Мотор %s: мощность %d%%, %d мс, %s", which, power, durationMs, dir)
	return c.run(ctx, role, lwp.RunMotor{Port: which, Power: power, DurationMs: durationMs, Direction: dir})
}

// RunInternalMotors запускает оба встроенных мотора в одну сторону
func (c *Controller) RunInternalMotors(ctx context.Context, role Role, power, durationMs int, dir lwp.Direction) error {
	return c.run(ctx, role, lwp.RunMotor{Port: lwp.PortInternalAB, Power: power, DurationMs: durationMs, Direction: dir})
}

// RunInternalMotorsOpposed запускает встроенные моторы навстречу друг другу
func (c *Controller) RunInternalMotorsOpposed(ctx context.Context, role Role, power, durationMs int) error {
	return c.run(ctx, role, lwp.RunMotorsOpposed{Power: power, DurationMs: durationMs})
}

// RunExternalMotor запускает внешний мотор на назначенном порту
func (c *Controller) RunExternalMotor(ctx context.Context, role Role, power, durationMs int, dir lwp.Direction) error {
	return c.run(ctx, role, lwp.RunMotor{Port: lwp.PortExternalMotor, Power: power, DurationMs: durationMs, Direction: dir})
}

// ArmSensor включает уведомления датчика. Если подписка на уведомления
// канала роли еще не включена, она включается перед кадром датчика.
func (c *Controller) ArmSensor(ctx context.Context, role Role, sensor lwp.Sensor) error {
	logging.ForRole(role.String()).Debugf("Включение уведомлений: %s", sensor)
	frame, err := lwp.Encode(lwp.SetNotifications{Sensor: sensor, Enabled: true}, c.session.Ports(role))
	if err != nil {
		return err
	}
	if err := c.session.EnsureNotifications(role); err != nil {
		return err
	}
	return c.session.Send(ctx, role, frame)
}

// DisarmSensor выключает уведомления датчика
func (c *Controller) DisarmSensor(ctx context.Context, role Role, sensor lwp.Sensor) error {
	logging.ForRole(role.String()).Debugf("Выключение уведомлений: %s", sensor)
	return c.run(ctx, role, lwp.SetNotifications{Sensor: sensor, Enabled: false})
}

// AssignPort назначает логическому порту букву C или D
func (c *Controller) AssignPort(role Role, port lwp.Port, letter lwp.PortLetter) error {
	return c.session.AssignPort(role, port, letter)
}

// SendRaw отправляет кадр из готовых байтов (ручной ввод)
func (c *Controller) SendRaw(ctx context.Context, role Role, data []byte) error {
	frame, err := lwp.RawFrame(data)
	if err != nil {
		return err
	}
	return c.session.Send(ctx, role, frame)
}
