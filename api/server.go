// Package api HTTP интерфейс управления хабами и автоматизациями
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"BoostProg/automation"
	"BoostProg/hub"
	"BoostProg/logging"
	"BoostProg/lwp"
)

// Hubs команды и состояние хабов. Реализуется hub.Controller вместе с сессией
// (см. NewHubs).
type Hubs interface {
	Connect() error
	Disconnect() error
	Info(role hub.Role) hub.HubInfo
	SetLEDColor(ctx context.Context, role hub.Role, color lwp.Color) error
	RunInternalMotor(ctx context.Context, role hub.Role, which lwp.Port, power, durationMs int, dir lwp.Direction) error
	RunInternalMotors(ctx context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error
	RunInternalMotorsOpposed(ctx context.Context, role hub.Role, power, durationMs int) error
	RunExternalMotor(ctx context.Context, role hub.Role, power, durationMs int, dir lwp.Direction) error
	ArmSensor(ctx context.Context, role hub.Role, sensor lwp.Sensor) error
	DisarmSensor(ctx context.Context, role hub.Role, sensor lwp.Sensor) error
	AssignPort(role hub.Role, port lwp.Port, letter lwp.PortLetter) error
	SendRaw(ctx context.Context, role hub.Role, data []byte) error
}

// controllerHubs добавляет к контроллеру чтение состояния сессии
type controllerHubs struct {
	*hub.Controller
}

func (h controllerHubs) Info(role hub.Role) hub.HubInfo {
	return h.Session().Info(role)
}

// NewHubs оборачивает контроллер
func NewHubs(c *hub.Controller) Hubs {
	return controllerHubs{Controller: c}
}

// BehaviorFactory собирает поведение по имени
type BehaviorFactory func(name string) (automation.Behavior, error)

// Server HTTP сервер на echo
type Server struct {
	e         *echo.Echo
	hubs      Hubs
	registry  *automation.Registry
	factory   BehaviorFactory
	available []string
}

// NewServer регистрирует маршруты
func NewServer(hubs Hubs, registry *automation.Registry, factory BehaviorFactory, available []string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := logging.ForComponent("api")
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency,
			}).Debug("Запрос")
			return nil
		},
	}))
	e.HTTPErrorHandler = errorHandler(e)

	s := &Server{e: e, hubs: hubs, registry: registry, factory: factory, available: available}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.POST("/connect", s.handleConnect)
	s.e.POST("/disconnect", s.handleDisconnect)

	h := s.e.Group("/hubs")
	h.GET("", s.handleListHubs)
	h.GET("/:role", s.handleGetHub)
	h.POST("/:role/led", s.handleLED)
	h.POST("/:role/motor", s.handleMotor)
	h.POST("/:role/motors/opposed", s.handleMotorsOpposed)
	h.POST("/:role/sensors/:sensor/arm", s.handleSensor(true))
	h.POST("/:role/sensors/:sensor/disarm", s.handleSensor(false))
	h.PUT("/:role/ports/:port", s.handleAssignPort)
	h.POST("/:role/frames", s.handleFrame)

	s.e.GET("/behaviors", s.handleListBehaviors)
	s.e.PUT("/behaviors/:name", s.handleEnableBehavior)
	s.e.DELETE("/behaviors/:name", s.handleDisableBehavior)
}

// ServeHTTP для httptest и встраивания
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Start слушает адрес до Shutdown
func (s *Server) Start(addr string) error {
	logging.ForComponent("api").Infof("HTTP API слушает %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// statusFor код ответа для ошибок домена
func statusFor(err error) int {
	switch {
	case errors.Is(err, lwp.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, hub.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, hub.ErrWriteFailed):
		return http.StatusBadGateway
	case errors.Is(err, hub.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := statusFor(err)
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
		if code >= http.StatusInternalServerError {
			logging.ForComponent("api").Warnf("Ошибка %s %s: %v", c.Request().Method, c.Path(), err)
		}
		if err := c.JSON(code, errorBody{Error: msg}); err != nil {
			e.Logger.Error(err)
		}
	}
}
