// types_test.go - Tests fuer die Wire-Typen des Stream-Protokolls
package api

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCommandMarshal(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected string
	}{
		{"ping ohne felder", Command{Type: CmdPing}, `{"type":"ping"}`},
		{"prompt ohne value", PromptCommand(CmdSetPrompt, "nebel im wald"), `{"type":"set_prompt","prompt":"nebel im wald"}`},
		{"value null bleibt erhalten", ValueCommand(CmdSetStrength, 0), `{"type":"set_strength","value":0}`},
		{"steps als zahl", ValueCommand(CmdSetSteps, 4), `{"type":"set_steps","value":4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cmd)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("Marshal = %s, erwartet %s", data, tt.expected)
			}
		})
	}
}

func TestCommandValuePresence(t *testing.T) {
	// value 0 muss von einem fehlenden value unterscheidbar sein:
	// feedback 0 ist ein gueltiger Wert, kein value verwirft das Kommando
	var withZero Command
	if err := json.Unmarshal([]byte(`{"type":"set_feedback","value":0}`), &withZero); err != nil {
		t.Fatal(err)
	}
	if withZero.Value == nil || *withZero.Value != 0 {
		t.Error("value 0 wurde nicht als gesetzt erkannt")
	}

	var missing Command
	if err := json.Unmarshal([]byte(`{"type":"set_feedback"}`), &missing); err != nil {
		t.Fatal(err)
	}
	if missing.Value != nil {
		t.Error("fehlender value muss nil bleiben")
	}
}

func TestEventUnmarshalToleratesUnknownFields(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"type":"prompt_set","prompt":"aquarell","extra":42}`), &ev); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	expected := Event{Type: EventPromptSet, Prompt: "aquarell"}
	if diff := cmp.Diff(expected, ev); diff != "" {
		t.Errorf("Event (-erwartet +bekommen):\n%s", diff)
	}
}

func TestStreamErrorMessage(t *testing.T) {
	if got := (StreamError{Message: "engine ausgefallen"}).Error(); got != "engine ausgefallen" {
		t.Errorf("Error() = %q", got)
	}
	if got := (StreamError{}).Error(); got == "" {
		t.Error("leere StreamError braucht eine Standard-Meldung")
	}
}
