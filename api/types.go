// types.go - Wire-Typen fuer das Stream-Protokoll
// Enthaelt: Command, Event, StatusResponse, StatusError, StreamError sowie Typ-Konstanten
package api

import (
	"fmt"
)

// Kommando-Typen, die der Controller auf dem Text-Kanal sendet
const (
	CmdSetPrompt         = "set_prompt"
	CmdSetNegativePrompt = "set_negative_prompt"
	CmdSetStrength       = "set_strength"
	CmdSetFeedback       = "set_feedback"
	CmdSetLerpSpeed      = "set_lerp_speed"
	CmdSetGuidanceScale  = "set_guidance_scale"
	CmdSetSteps          = "set_steps"
	CmdSetSeed           = "set_seed"
	CmdPing              = "ping"
)

// Event-Typen, die der Server auf dem Text-Kanal sendet
const (
	EventPromptSet = "prompt_set"
	EventPong      = "pong"
	EventError     = "error"
)

// Status-Werte der /health Antwort. StatusFailed behaelt den Wire-Wert
// "error"; der Name weicht ab, weil StatusError der Fehler-Typ ist.
const (
	StatusLoading = "loading"
	StatusReady   = "ready"
	StatusFailed  = "error"
)

// Command ist ein Steuer-Kommando auf dem Text-Kanal der Stream-Verbindung.
// Prompt-Kommandos tragen Prompt, numerische Kommandos tragen Value. Ein
// fehlender Value laesst das Kommando wirkungslos verfallen, damit ein
// fehlerhafter Controller den laufenden Stream nicht verstellt.
type Command struct {
	Type   string   `json:"type"`
	Prompt string   `json:"prompt,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// Event ist eine Server-Nachricht auf dem Text-Kanal.
type Event struct {
	Type    string `json:"type"`
	Prompt  string `json:"prompt,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusResponse ist die Antwort von GET /health.
type StatusResponse struct {
	Status string `json:"status"`
}

// PromptCommand baut ein Prompt-Kommando (set_prompt, set_negative_prompt).
func PromptCommand(cmdType, prompt string) Command {
	return Command{Type: cmdType, Prompt: prompt}
}

// ValueCommand baut ein numerisches Kommando (set_strength, set_steps, ...).
func ValueCommand(cmdType string, value float64) Command {
	return Command{Type: cmdType, Value: &value}
}

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the flowpaint server logs for details"
	}
}

// StreamError ist ein error-Event der Gegenseite auf der Stream-Verbindung.
// Der Server schickt es, bevor er die Verbindung schliesst.
type StreamError struct {
	Message string
}

func (e StreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unbekannter stream-fehler"
}
