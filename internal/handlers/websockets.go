package handlers

import (
	"net/http"
	"time"

	"qrscan/internal/logger"
	"qrscan/internal/services"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler streams session events to a viewer. The first message
// is the current snapshot so late joiners start from the right state.
func ViewWebsocketHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		hello := map[string]any{"type": "snapshot", "session": manager.GetSession().Snapshot()}
		if err := connection.WriteJSON(hello); err != nil {
			logger.Warning("Viewer left before snapshot: %v", err)
			connection.Close()
			return
		}

		hub := manager.GetWebsocketService()
		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				logger.Debug("Viewer disconnected: %v", err)
				break
			}
		}
	}
}
