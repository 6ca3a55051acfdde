// routes_stream_commands.go - Kommando-Verarbeitung des Text-Kanals
// Enthaelt: dispatchCommand mit dem vollen Mutator-Satz des Streams

package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pictaflux/flowpaint/api"
	"github.com/pictaflux/flowpaint/diffusion"
	"github.com/pictaflux/flowpaint/logutil"
)

// eventWriter ist die Event-Seite einer Stream-Verbindung
type eventWriter interface {
	WriteJSON(v any) error
}

// dispatchCommand wendet ein Text-Kommando auf den Stream-Zustand an.
// Nicht lesbare oder unbekannte Kommandos werden still ignoriert, ein
// numerisches Kommando ohne value verfaellt wirkungslos. Kommandos wirken
// ab dem naechsten Frame.
func dispatchCommand(ctx context.Context, w eventWriter, state *diffusion.State, data []byte, connID string) {
	var cmd api.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		logutil.Trace("kommando nicht lesbar", "id", connID, "error", err)
		return
	}

	switch cmd.Type {
	case api.CmdSetPrompt:
		if err := state.SetTargetPrompt(ctx, cmd.Prompt); err != nil {
			slog.Warn("prompt setzen fehlgeschlagen", "id", connID, "error", err)
			return
		}
		w.WriteJSON(api.Event{Type: api.EventPromptSet, Prompt: cmd.Prompt})
	case api.CmdSetNegativePrompt:
		if err := state.SetNegativePrompt(ctx, cmd.Prompt); err != nil {
			slog.Warn("negativ-prompt setzen fehlgeschlagen", "id", connID, "error", err)
		}
	case api.CmdSetStrength:
		if cmd.Value == nil {
			dropCommand(connID, cmd.Type)
			return
		}
		state.SetStrength(*cmd.Value)
	case api.CmdSetFeedback:
		if cmd.Value == nil {
			dropCommand(connID, cmd.Type)
			return
		}
		state.SetFeedback(*cmd.Value)
	case api.CmdSetLerpSpeed:
		if cmd.Value == nil {
			dropCommand(connID, cmd.Type)
			return
		}
		state.SetLerpSpeed(*cmd.Value)
	case api.CmdSetGuidanceScale:
		if cmd.Value == nil {
			dropCommand(connID, cmd.Type)
			return
		}
		state.SetGuidanceScale(*cmd.Value)
	case api.CmdSetSteps:
		if cmd.Value == nil {
			dropCommand(connID, cmd.Type)
			return
		}
		state.SetSteps(int(*cmd.Value))
	case api.CmdSetSeed:
		if cmd.Value == nil {
			dropCommand(connID, cmd.Type)
			return
		}
		state.SetSeed(int64(*cmd.Value))
	case api.CmdPing:
		w.WriteJSON(api.Event{Type: api.EventPong})
	default:
		logutil.Trace("unbekanntes kommando", "id", connID, "type", cmd.Type)
	}
}

func dropCommand(connID, cmdType string) {
	slog.Warn("kommando ohne wert verworfen", "id", connID, "type", cmdType)
}
