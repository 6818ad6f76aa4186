package controller

import (
	"github.com/GabrielLeandroBS/locationd/internal/service"
	"github.com/labstack/echo/v4"
)

type Controllers interface {
	Info() InfoController
	Location() LocationController
	Stream() StreamController

	Route(e *echo.Echo)
}

type controllers struct {
	infoController     InfoController
	locationController LocationController
	streamController   StreamController
}

func NewControllers(services service.Services) Controllers {
	infoController := newInfoController()
	locationController := newLocationController(services)
	streamController := newStreamController(services)
	return &controllers{
		infoController:     infoController,
		locationController: locationController,
		streamController:   streamController,
	}
}

func (c controllers) Info() InfoController {
	return c.infoController
}

func (c controllers) Location() LocationController {
	return c.locationController
}

func (c controllers) Stream() StreamController {
	return c.streamController
}

func (c controllers) Route(e *echo.Echo) {
	e.GET("/", c.infoController.Info)
	e.GET("/location", c.locationController.Current)
	e.POST("/location/refresh", c.locationController.Refresh)
	e.GET("/location/stream", c.streamController.Stream)
}
