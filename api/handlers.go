package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"BoostProg/hub"
	"BoostProg/lwp"
)

// HubView состояние хаба для ответа
type HubView struct {
	Role     string            `json:"role"`
	Title    string            `json:"title"`
	State    string            `json:"state"`
	Peer     string            `json:"peer,omitempty"`
	Since    time.Time         `json:"since"`
	Ports    map[string]string `json:"ports"`
	Attached []AttachmentView  `json:"attached"`
}

// AttachmentView подключенное к порту устройство
type AttachmentView struct {
	PortID string `json:"port_id"`
	Port   string `json:"port,omitempty"`
	Device string `json:"device"`
}

func newHubView(info hub.HubInfo) HubView {
	view := HubView{
		Role:     info.Link.Role.String(),
		Title:    info.Link.Role.Info().Title,
		State:    info.Link.State.String(),
		Peer:     string(info.Link.Peer),
		Since:    info.Link.Since,
		Ports:    map[string]string{},
		Attached: []AttachmentView{},
	}
	for _, p := range []lwp.Port{lwp.PortColorSensor, lwp.PortExternalMotor} {
		if letter := info.Ports.Letter(p); letter != lwp.LetterNone {
			view.Ports[p.String()] = letter.String()
		}
	}
	for _, a := range info.Attached {
		av := AttachmentView{PortID: fmt.Sprintf("0x%02x", a.PortID), Device: a.Name}
		if a.Port != 0 {
			av.Port = a.Port.String()
		}
		view.Attached = append(view.Attached, av)
	}
	return view
}

func paramRole(c echo.Context) (hub.Role, error) {
	role, err := hub.ParseRole(c.Param("role"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return role, nil
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "неверное тело запроса")
	}
	return nil
}

type statusBody struct {
	Status string `json:"status"`
}

func (s *Server) handleConnect(c echo.Context) error {
	if err := s.hubs.Connect(); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, statusBody{Status: "connecting"})
}

func (s *Server) handleDisconnect(c echo.Context) error {
	if err := s.hubs.Disconnect(); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, statusBody{Status: "disconnecting"})
}

func (s *Server) handleListHubs(c echo.Context) error {
	views := make([]HubView, 0, len(hub.Roles))
	for _, role := range hub.Roles {
		views = append(views, newHubView(s.hubs.Info(role)))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetHub(c echo.Context) error {
	role, err := paramRole(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newHubView(s.hubs.Info(role)))
}

type ledRequest struct {
	Color string `json:"color"`
}

func (s *Server) handleLED(c echo.Context) error {
	role, err := paramRole(c)
	if err != nil {
		return err
	}
	var req ledRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	color, err := lwp.ParseColor(req.Color)
	if err != nil {
		return err
	}
	if err := s.hubs.SetLEDColor(c.Request().Context(), role, color); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type motorRequest struct {
	Port      string `json:"port"` // A, B, AB, external_motor
	Power     int    `json:"power"`
	Duration  int    `json:"duration_ms"`
	Clockwise *bool  `json:"clockwise"`
}

func (s *Server) handleMotor(c echo.Context) error {
	role, err := paramRole(c)
	if err != nil {
		return err
	}
	var req motorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	port, err := lwp.ParsePort(req.Port)
	if err != nil {
		return err
	}
	dir := lwp.Clockwise
	if req.Clockwise != nil && !*req.Clockwise {
		dir = lwp.CounterClockwise
	}

	ctx := c.Request().Context()
	switch port {
	case lwp.PortInternalAB:
		err = s.hubs.RunInternalMotors(ctx, role, req.Power, req.Duration, dir)
	case lwp.PortExternalMotor:
		err = s.hubs.RunExternalMotor(ctx, role, req.Power, req.Duration, dir)
	default:
		err = s.hubs.RunInternalMotor(ctx, role, port, req.Power, req.Duration, dir)
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMotorsOpposed(c echo.Context) error {
	role, err := paramRole(c)
	if err != nil {
		return err
	}
	var req motorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.hubs.RunInternalMotorsOpposed(c.Request().Context(), role, req.Power, req.Duration); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSensor(enable bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, err := paramRole(c)
		if err != nil {
			return err
		}
		sensor, err := lwp.ParseSensor(c.Param("sensor"))
		if err != nil {
			return err
		}
		if enable {
			err = s.hubs.ArmSensor(c.Request().Context(), role, sensor)
		} else {
			err = s.hubs.DisarmSensor(c.Request().Context(), role, sensor)
		}
		if err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type portRequest struct {
	Letter string `json:"letter"`
}

func (s *Server) handleAssignPort(c echo.Context) error {
	role, err := paramRole(c)
	if err != nil {
		return err
	}
	port, err := lwp.ParsePort(c.Param("port"))
	if err != nil {
		return err
	}
	var req portRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	letter, err := lwp.ParseLetter(req.Letter)
	if err != nil {
		return err
	}
	if err := s.hubs.AssignPort(role, port, letter); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newHubView(s.hubs.Info(role)))
}

type frameRequest struct {
	Frame string `json:"frame"`
}

func (s *Server) handleFrame(c echo.Context) error {
	role, err := paramRole(c)
	if err != nil {
		return err
	}
	var req frameRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	data, err := lwp.HexToBytes(req.Frame)
	if err != nil {
		return err
	}
	if err := s.hubs.SendRaw(c.Request().Context(), role, data); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type behaviorsBody struct {
	Active    []string `json:"active"`
	Available []string `json:"available"`
}

func (s *Server) handleListBehaviors(c echo.Context) error {
	return c.JSON(http.StatusOK, behaviorsBody{Active: s.registry.Names(), Available: s.available})
}

func (s *Server) handleEnableBehavior(c echo.Context) error {
	name := c.Param("name")
	b, err := s.factory(name)
	if err != nil {
		return fmt.Errorf("%w: %v", lwp.ErrInvalidParameter, err)
	}
	if err := s.registry.Register(c.Request().Context(), name, b); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, behaviorsBody{Active: s.registry.Names(), Available: s.available})
}

func (s *Server) handleDisableBehavior(c echo.Context) error {
	s.registry.Unregister(c.Request().Context(), c.Param("name"))
	return c.NoContent(http.StatusNoContent)
}
