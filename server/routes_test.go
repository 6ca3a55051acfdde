// routes_test.go - Tests fuer Router, Health und den Stream-Kanal
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/pictaflux/flowpaint/api"
	"github.com/pictaflux/flowpaint/diffusion"
	"github.com/pictaflux/flowpaint/ml/backend/testbackend"
	"github.com/pictaflux/flowpaint/version"
)

// newTestServer baut einen fertig geladenen Server mit Test-Backend
func newTestServer(t *testing.T) (*Server, *testbackend.Backend, *httptest.Server) {
	t.Helper()

	backend := testbackend.New()
	sem := semaphore.NewWeighted(1)

	cfg := diffusion.DefaultConfig()
	cfg.RenderSize = 16

	st, err := diffusion.NewState(context.Background(), backend, sem, cfg)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	eng := diffusion.NewEngine(backend, st, sem, cfg.RenderSize, cfg.RenderSize)

	s := &Server{}
	s.setStatus(api.StatusReady)
	s.setEngineSet(&engineSet{backend: backend, state: st, engine: eng})

	h, err := s.GenerateRoutes()
	if err != nil {
		t.Fatalf("GenerateRoutes() error = %v", err)
	}

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return s, backend, ts
}

// newLoadingServer baut einen Server, dessen Modell noch nicht da ist
func newLoadingServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := &Server{}
	s.setStatus(api.StatusLoading)

	h, err := s.GenerateRoutes()
	if err != nil {
		t.Fatalf("GenerateRoutes() error = %v", err)
	}

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	streamURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(streamURL, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", streamURL, err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func framePNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()

	rgba := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			rgba.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readMessage(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	return msgType, data
}

func TestRootEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Flowpaint is running" {
		t.Errorf("body = %q", body)
	}
}

func TestVersionEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var v struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Version != version.Version {
		t.Errorf("version = %q, erwartet %q", v.Version, version.Version)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, ready := newTestServer(t)
	loading := newLoadingServer(t)

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"bereit", ready.URL, api.StatusReady},
		{"laedt noch", loading.URL, api.StatusLoading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(tt.url + "/health")
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			var status api.StatusResponse
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				t.Fatal(err)
			}
			if status.Status != tt.expected {
				t.Errorf("status = %q, erwartet %q", status.Status, tt.expected)
			}
		})
	}
}

func TestStreamBeforeModelLoaded(t *testing.T) {
	ts := newLoadingServer(t)

	resp, err := http.Get(ts.URL + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, erwartet 503", resp.StatusCode)
	}
}

func TestStreamFrameRoundTrip(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialStream(t, ts)

	if err := conn.WriteMessage(websocket.BinaryMessage, framePNG(t, color.RGBA{128, 128, 128, 255})); err != nil {
		t.Fatal(err)
	}

	msgType, data := readMessage(t, conn)
	if msgType != websocket.BinaryMessage {
		t.Fatalf("msgType = %d, erwartet binaer", msgType)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("Antwort ist kein JPEG")
	}
}

func TestStreamPromptAckAndPing(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialStream(t, ts)

	if err := conn.WriteJSON(api.PromptCommand(api.CmdSetPrompt, "tuschezeichnung")); err != nil {
		t.Fatal(err)
	}

	msgType, data := readMessage(t, conn)
	if msgType != websocket.TextMessage {
		t.Fatalf("msgType = %d, erwartet text", msgType)
	}
	var ev api.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != api.EventPromptSet || ev.Prompt != "tuschezeichnung" {
		t.Errorf("Event = %+v, erwartet prompt_set ack", ev)
	}

	if err := conn.WriteJSON(api.Command{Type: api.CmdPing}); err != nil {
		t.Fatal(err)
	}
	_, data = readMessage(t, conn)
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != api.EventPong {
		t.Errorf("Event = %+v, erwartet pong", ev)
	}
}

func TestStreamCommandsApplyInOrder(t *testing.T) {
	s, _, ts := newTestServer(t)
	conn := dialStream(t, ts)

	if err := conn.WriteJSON(api.ValueCommand(api.CmdSetStrength, 0.8)); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(api.ValueCommand(api.CmdSetSteps, 4)); err != nil {
		t.Fatal(err)
	}

	// Der pong kommt nach den Kommandos durch dieselbe Schleife,
	// danach ist der Zustand sichtbar
	if err := conn.WriteJSON(api.Command{Type: api.CmdPing}); err != nil {
		t.Fatal(err)
	}
	_, data := readMessage(t, conn)
	var ev api.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != api.EventPong {
		t.Fatalf("Event = %+v, erwartet pong", ev)
	}

	st := s.engineSet().state
	if got := st.Timestep(); got != 799 {
		t.Errorf("Timestep = %d, erwartet 799", got)
	}
	if got := st.Steps(); got != 4 {
		t.Errorf("Steps = %d, erwartet 4", got)
	}
}

func TestStreamSkipsUndecodableFrames(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialStream(t, ts)

	// Muell wird still verworfen, der naechste gute Frame kommt durch
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xDE, 0xAD, 0xBE, 0xEF}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, framePNG(t, color.RGBA{200, 50, 50, 255})); err != nil {
		t.Fatal(err)
	}

	msgType, data := readMessage(t, conn)
	if msgType != websocket.BinaryMessage {
		t.Fatalf("msgType = %d, erwartet binaer", msgType)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("Antwort ist kein JPEG")
	}
}

func TestStreamEngineFailureClosesConnection(t *testing.T) {
	s, backend, ts := newTestServer(t)
	conn := dialStream(t, ts)

	backend.DenoiseErr = errors.New("unet kaputt")

	// Drei Backend-Fehler in Folge: der dritte toetet die Engine
	frame := framePNG(t, color.RGBA{A: 255})
	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			t.Fatal(err)
		}
	}

	msgType, data := readMessage(t, conn)
	if msgType != websocket.TextMessage {
		t.Fatalf("msgType = %d, erwartet text", msgType)
	}
	var ev api.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != api.EventError {
		t.Errorf("Event = %+v, erwartet error", ev)
	}

	// Danach ist die Verbindung zu und der Status auf error
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Verbindung blieb nach Engine-Ausfall offen")
	}

	if got := s.Status(); got != api.StatusFailed {
		t.Errorf("Status = %q, erwartet %q", got, api.StatusFailed)
	}
}
