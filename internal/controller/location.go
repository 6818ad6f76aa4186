package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/service"
)

type LocationController interface {
	Current(c echo.Context) error
	Refresh(c echo.Context) error
	Close()
}

// locationController holds the daemon's own long-lived session. Every
// HTTP read and refresh goes through it, so the daemon behaves like one
// more consumer of the shared engine.
type locationController struct {
	session service.Session
}

func newLocationController(services service.Services) LocationController {
	session := services.NewSession()
	session.Start()
	return &locationController{
		session: session,
	}
}

// Current returns the session snapshot as it stands, without waiting on
// any in-flight fetch.
func (l *locationController) Current(c echo.Context) error {
	return c.JSON(http.StatusOK, l.session.Snapshot())
}

// Refresh runs a fetch to completion. With ?force=true the cache
// short-circuit is skipped and a fresh fix is always requested.
func (l *locationController) Refresh(c echo.Context) error {
	force, _ := strconv.ParseBool(c.QueryParam("force"))

	err := l.session.Refresh(force)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, l.session.Snapshot())
	case errors.Is(err, dto.ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, l.session.Snapshot())
	case errors.Is(err, dto.ErrNoFixAvailable):
		return c.JSON(http.StatusServiceUnavailable, l.session.Snapshot())
	default:
		return c.JSON(http.StatusInternalServerError, l.session.Snapshot())
	}
}

func (l *locationController) Close() {
	l.session.Close()
}
