// routes_stream.go - WebSocket-Handler fuer den Video-Stream
// Enthaelt: StreamHandler (Upgrade) und die Frame-Schleife pro Verbindung

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pictaflux/flowpaint/api"
	"github.com/pictaflux/flowpaint/diffusion"
	"github.com/pictaflux/flowpaint/logutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Origin-Politik macht die CORS-Middleware; der Controller meldet
	// sich mit app-, file- oder tauri-Origins
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamHandler nimmt eine Stream-Verbindung an. Binaere Nachrichten sind
// JPEG-Frames und werden stilisiert zurueckgeschickt, Text-Nachrichten
// sind Kommandos fuer den Stream-Zustand.
func (s *Server) StreamHandler(c *gin.Context) {
	es := s.engineSet()
	if es == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "modell wird noch geladen"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade fehlgeschlagen", "error", err)
		return
	}

	s.streamLoop(conn, es)
}

// streamLoop ist die Lese-Schleife einer Verbindung. Alle Schreibzugriffe
// auf die Verbindung passieren hier, es gibt keinen zweiten Writer.
func (s *Server) streamLoop(conn *websocket.Conn, es *engineSet) {
	connID := uuid.New().String()

	slog.Info("stream verbunden", "id", connID, "remote", conn.RemoteAddr())
	defer slog.Info("stream getrennt", "id", connID)
	defer conn.Close()

	ctx := context.Background()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("stream lesen fehlgeschlagen", "id", connID, "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			out, err := es.engine.ProcessFrame(ctx, data)
			switch {
			case errors.Is(err, diffusion.ErrFrameDecode):
				// undekodierbare Frames werden still verworfen
				logutil.Trace("frame verworfen", "id", connID, "error", err)
				continue
			case errors.Is(err, diffusion.ErrEngineFailed):
				slog.Error("engine ausgefallen", "id", connID, "error", err)
				s.setStatus(api.StatusFailed)
				conn.WriteJSON(api.Event{Type: api.EventError, Message: "engine ausgefallen"})
				return
			case err != nil:
				slog.Warn("frame fehlgeschlagen", "id", connID, "error", err)
				continue
			}

			if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
				slog.Warn("frame senden fehlgeschlagen", "id", connID, "error", err)
				return
			}
		case websocket.TextMessage:
			dispatchCommand(ctx, conn, es.state, data, connID)
		}
	}
}
