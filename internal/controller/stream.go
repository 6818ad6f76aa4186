package controller

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/GabrielLeandroBS/locationd/internal/service"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from the client.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type StreamController interface {
	Stream(c echo.Context) error
}

type streamController struct {
	services service.Services
}

func newStreamController(services service.Services) StreamController {
	return &streamController{
		services: services,
	}
}

// Stream upgrades the connection and attaches a dedicated session to
// it. Snapshots flow down as they are published and the session dies
// with the connection, so every open socket is one live consumer of
// the shared engine.
func (s *streamController) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	session := s.services.NewSession()
	session.Start()
	logrus.Debugf("Stream opened for session %s", session.ID())

	go s.readLoop(conn, session)
	go s.writeLoop(conn, session)
	return nil
}

// readLoop drains client frames until the connection drops, then tears
// the session down.
func (s *streamController) readLoop(conn *websocket.Conn, session service.Session) {
	defer func() {
		session.Close()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Debugf("Stream %s closed: %v", session.ID(), err)
			}
			return
		}
	}
}

func (s *streamController) writeLoop(conn *websocket.Conn, session service.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	// Push the current state first so the client is not left waiting
	// for the next publish.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(session.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case snapshot, ok := <-session.Updates():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
