package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS joins the caller to a notification room. The connection is
// write-only from the server's perspective; the read loop exists to detect
// disconnects.
func (h *Handler) ServeWS(c echo.Context) error {
	room := c.QueryParam("room")
	if room == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing room parameter"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.Hub.Join(room, conn)
	h.Log.Info("websocket joined", slog.String("room", room))

	go func() {
		defer func() {
			h.Hub.Leave(room, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
