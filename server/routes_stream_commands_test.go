// routes_stream_commands_test.go - Tests fuer die Kommando-Verarbeitung
package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/semaphore"

	"github.com/pictaflux/flowpaint/api"
	"github.com/pictaflux/flowpaint/diffusion"
	"github.com/pictaflux/flowpaint/ml/backend/testbackend"
)

// eventRecorder sammelt Events, die dispatchCommand schreibt
type eventRecorder struct {
	events []api.Event
}

func (r *eventRecorder) WriteJSON(v any) error {
	r.events = append(r.events, v.(api.Event))
	return nil
}

func newDispatchState(t *testing.T) *diffusion.State {
	t.Helper()

	cfg := diffusion.DefaultConfig()
	cfg.RenderSize = 16

	st, err := diffusion.NewState(context.Background(), testbackend.New(), semaphore.NewWeighted(1), cfg)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	return st
}

func rawCommand(t *testing.T, cmd api.Command) []byte {
	t.Helper()

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDispatchSetPromptAck(t *testing.T) {
	st := newDispatchState(t)
	rec := &eventRecorder{}

	dispatchCommand(context.Background(), rec, st, rawCommand(t, api.PromptCommand(api.CmdSetPrompt, "aquarell")), "test")

	expected := []api.Event{{Type: api.EventPromptSet, Prompt: "aquarell"}}
	if diff := cmp.Diff(expected, rec.events); diff != "" {
		t.Errorf("Events (-erwartet +bekommen):\n%s", diff)
	}
}

func TestDispatchPing(t *testing.T) {
	st := newDispatchState(t)
	rec := &eventRecorder{}

	dispatchCommand(context.Background(), rec, st, rawCommand(t, api.Command{Type: api.CmdPing}), "test")

	if len(rec.events) != 1 || rec.events[0].Type != api.EventPong {
		t.Errorf("Events = %v, erwartet ein pong", rec.events)
	}
}

func TestDispatchNumericCommands(t *testing.T) {
	tests := []struct {
		name  string
		cmd   api.Command
		check func(t *testing.T, st *diffusion.State)
	}{
		{
			"set_strength", api.ValueCommand(api.CmdSetStrength, 0.8),
			func(t *testing.T, st *diffusion.State) {
				if got := st.Timestep(); got != 799 {
					t.Errorf("Timestep = %d, erwartet 799", got)
				}
			},
		},
		{
			"set_feedback", api.ValueCommand(api.CmdSetFeedback, 0.5),
			func(t *testing.T, st *diffusion.State) {
				if got := st.Feedback(); got != 0.5 {
					t.Errorf("Feedback = %v, erwartet 0.5", got)
				}
			},
		},
		{
			"set_lerp_speed", api.ValueCommand(api.CmdSetLerpSpeed, 0.25),
			func(t *testing.T, st *diffusion.State) {
				if got := st.LerpSpeed(); got != 0.25 {
					t.Errorf("LerpSpeed = %v, erwartet 0.25", got)
				}
			},
		},
		{
			"set_guidance_scale", api.ValueCommand(api.CmdSetGuidanceScale, 7.5),
			func(t *testing.T, st *diffusion.State) {
				if got := st.GuidanceScale(); got != 7.5 {
					t.Errorf("GuidanceScale = %v, erwartet 7.5", got)
				}
			},
		},
		{
			"set_steps", api.ValueCommand(api.CmdSetSteps, 4),
			func(t *testing.T, st *diffusion.State) {
				if got := st.Steps(); got != 4 {
					t.Errorf("Steps = %d, erwartet 4", got)
				}
			},
		},
		{
			"set_seed", api.ValueCommand(api.CmdSetSeed, 7),
			func(t *testing.T, st *diffusion.State) {
				if got := st.Seed(); got != 7 {
					t.Errorf("Seed = %d, erwartet 7", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newDispatchState(t)
			rec := &eventRecorder{}

			dispatchCommand(context.Background(), rec, st, rawCommand(t, tt.cmd), "test")
			tt.check(t, st)
		})
	}
}

func TestDispatchMissingValueDropped(t *testing.T) {
	st := newDispatchState(t)
	rec := &eventRecorder{}

	// set_strength ohne value darf den Zustand nicht anfassen
	dispatchCommand(context.Background(), rec, st, []byte(`{"type":"set_strength"}`), "test")

	if got := st.Timestep(); got != 400 {
		t.Errorf("Timestep = %d, erwartet unveraendert 400", got)
	}
	if len(rec.events) != 0 {
		t.Errorf("Events = %v, erwartet keine", rec.events)
	}
}

func TestDispatchIgnoresGarbage(t *testing.T) {
	st := newDispatchState(t)
	rec := &eventRecorder{}

	inputs := [][]byte{
		[]byte(`{invalid`),
		[]byte(`"nur ein string"`),
		[]byte(`{"type":"warp_drive","value":9}`),
		[]byte(``),
	}
	for _, data := range inputs {
		dispatchCommand(context.Background(), rec, st, data, "test")
	}

	if len(rec.events) != 0 {
		t.Errorf("Events = %v, erwartet keine", rec.events)
	}
	if got := st.Timestep(); got != 400 {
		t.Errorf("Timestep = %d, erwartet unveraendert 400", got)
	}
}
