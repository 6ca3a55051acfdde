// Package api - Stream-Methoden des Clients.
// Dieses Modul enthaelt die WebSocket-Verbindung fuer Frames und Kommandos.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// EventHandler empfaengt Text-Events der Gegenseite, die waehrend des
// Wartens auf einen Frame eintreffen (prompt_set, pong).
type EventHandler func(Event)

// StreamConn ist eine offene Stream-Verbindung zum Sidecar. Binaere
// Nachrichten tragen JPEG-Frames, Text-Nachrichten Kommandos und Events.
//
// Kommandos duerfen parallel zu ProcessFrame gesendet werden; ProcessFrame
// selbst vertraegt nur einen Aufrufer gleichzeitig.
type StreamConn struct {
	conn *websocket.Conn

	// wmu serialisiert alle Schreibzugriffe, die Verbindung erlaubt nur
	// einen gleichzeitigen Writer
	wmu sync.Mutex

	onEvent EventHandler
}

// Connect oeffnet die Stream-Verbindung unter /stream. Host und Port kommen
// aus der Client-Basis, das Schema wird auf ws bzw. wss umgeschrieben.
func (c *Client) Connect(ctx context.Context) (*StreamConn, error) {
	streamURL := c.base.JoinPath("/stream")
	switch streamURL.Scheme {
	case "https":
		streamURL.Scheme = "wss"
	default:
		streamURL.Scheme = "ws"
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream verbinden fehlgeschlagen (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stream verbinden fehlgeschlagen: %w", err)
	}

	return &StreamConn{conn: conn}, nil
}

// OnEvent registriert einen Handler fuer Text-Events. Vor dem ersten Frame
// registrieren; ohne Handler werden Events (ausser error) verworfen.
func (s *StreamConn) OnEvent(fn EventHandler) {
	s.onEvent = fn
}

// ProcessFrame schickt einen JPEG-Frame und wartet auf den stilisierten
// Antwort-Frame. Text-Events, die waehrenddessen eintreffen, gehen an den
// OnEvent-Handler; ein error-Event beendet den Aufruf mit [StreamError].
func (s *StreamConn) ProcessFrame(data []byte) ([]byte, error) {
	if err := s.write(websocket.BinaryMessage, data); err != nil {
		return nil, fmt.Errorf("frame senden fehlgeschlagen: %w", err)
	}

	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("frame empfangen fehlgeschlagen: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			return payload, nil
		case websocket.TextMessage:
			var ev Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				continue
			}
			if ev.Type == EventError {
				return nil, StreamError{Message: ev.Message}
			}
			if s.onEvent != nil {
				s.onEvent(ev)
			}
		}
	}
}

// Send schickt ein einzelnes Kommando auf dem Text-Kanal.
func (s *StreamConn) Send(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

// SetPrompt setzt den Ziel-Prompt. Die Gegenseite bestaetigt mit einem
// prompt_set Event und blendet die Stilrichtung ueber die naechsten Frames
// dorthin.
func (s *StreamConn) SetPrompt(prompt string) error {
	return s.Send(PromptCommand(CmdSetPrompt, prompt))
}

// SetNegativePrompt setzt den Negativ-Prompt fuer die Guidance.
func (s *StreamConn) SetNegativePrompt(prompt string) error {
	return s.Send(PromptCommand(CmdSetNegativePrompt, prompt))
}

// SetStrength setzt die Stilisierungs-Staerke (0 bis 1).
func (s *StreamConn) SetStrength(v float64) error {
	return s.Send(ValueCommand(CmdSetStrength, v))
}

// SetFeedback setzt die zeitliche Glaettung ueber das vorherige Latent (0 bis 1).
func (s *StreamConn) SetFeedback(v float64) error {
	return s.Send(ValueCommand(CmdSetFeedback, v))
}

// SetLerpSpeed setzt die Prompt-Ueberblend-Geschwindigkeit (0 bis 1).
func (s *StreamConn) SetLerpSpeed(v float64) error {
	return s.Send(ValueCommand(CmdSetLerpSpeed, v))
}

// SetGuidanceScale setzt die Classifier-Free-Guidance Skala.
func (s *StreamConn) SetGuidanceScale(v float64) error {
	return s.Send(ValueCommand(CmdSetGuidanceScale, v))
}

// SetSteps setzt die Anzahl der Denoise-Schritte pro Frame.
func (s *StreamConn) SetSteps(n int) error {
	return s.Send(ValueCommand(CmdSetSteps, float64(n)))
}

// SetSeed setzt den Seed des fixierten Rauschens.
func (s *StreamConn) SetSeed(seed int64) error {
	return s.Send(ValueCommand(CmdSetSeed, float64(seed)))
}

// Ping schickt ein Keepalive-Kommando; das pong-Event kommt ueber den
// OnEvent-Handler zurueck.
func (s *StreamConn) Ping() error {
	return s.Send(Command{Type: CmdPing})
}

// Close schliesst die Stream-Verbindung. Ein in ProcessFrame blockierter
// Lesezugriff kehrt danach mit Fehler zurueck.
func (s *StreamConn) Close() error {
	s.wmu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.wmu.Unlock()

	return s.conn.Close()
}

func (s *StreamConn) write(msgType int, data []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(msgType, data)
}
