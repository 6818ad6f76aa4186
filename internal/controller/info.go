package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type InfoController interface {
	Info(c echo.Context) error
}

type infoController struct {
	started time.Time
}

func newInfoController() InfoController {
	return &infoController{
		started: time.Now(),
	}
}

func (i *infoController) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "locationd",
		"status":  "ok",
		"uptime":  time.Since(i.started).Round(time.Second).String(),
	})
}
