// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Config, Serve() mit LOADING/READY Handshake und Modell-Laden

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pictaflux/flowpaint/api"
	"github.com/pictaflux/flowpaint/diffusion"
	"github.com/pictaflux/flowpaint/envconfig"
	"github.com/pictaflux/flowpaint/logutil"
	"github.com/pictaflux/flowpaint/ml"
	"github.com/pictaflux/flowpaint/version"
)

// Config beschreibt einen Sidecar-Lauf
type Config struct {
	// Backend ist der Name des registrierten ml-Backends (onnx, test)
	Backend string

	// ModelDir ist das Verzeichnis mit den exportierten Modell-Teilen
	ModelDir string

	// OutputSize ist die Kantenlaenge der Antwort-Frames;
	// 0 uebernimmt die Render-Groesse
	OutputSize int

	// Diffusion haelt die Start-Parameter des Streams
	Diffusion diffusion.Config
}

// Serve startet den HTTP-Server und laedt das Modell im Hintergrund.
// Der Controller liest das Protokoll auf stdout: erst LOADING, nach dem
// Laden READY:<port>. Bis dahin antwortet /stream mit 503.
func Serve(ln net.Listener, cfg Config) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	s := &Server{addr: ln.Addr()}
	s.setStatus(api.StatusLoading)

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	fmt.Println("LOADING")

	srvr := &http.Server{
		Handler: h,
	}

	// listen for a ctrl+c and stop the stream
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
	}()

	// Modell-Laden abseits des Accept- und Signal-Pfads
	loaded := make(chan error, 1)
	go func() {
		loaded <- s.load(context.Background(), cfg)
	}()

	fatal := make(chan error, 1)
	go func() {
		select {
		case err := <-loaded:
			if err != nil {
				slog.Error("modell laden fehlgeschlagen", "error", err)
				s.setStatus(api.StatusFailed)
				fatal <- err
				srvr.Close()
				return
			}
		case <-time.After(envconfig.LoadTimeout()):
			slog.Error("modell laden nicht rechtzeitig abgeschlossen", "timeout", envconfig.LoadTimeout())
			s.setStatus(api.StatusFailed)
			fatal <- errors.New("zeitueberschreitung beim laden des modells")
			srvr.Close()
			return
		}

		s.setStatus(api.StatusReady)
		fmt.Printf("READY:%d\n", s.Port())
		slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
		fatal <- nil
	}()

	err = srvr.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	s.closeBackend()

	select {
	case err := <-fatal:
		return err
	default:
		return nil
	}
}

// load baut Backend, Stream-Zustand und Engine auf
func (s *Server) load(ctx context.Context, cfg Config) error {
	start := time.Now()

	backend, err := ml.NewBackend(cfg.Backend, cfg.ModelDir)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(1)
	state, err := diffusion.NewState(ctx, backend, sem, cfg.Diffusion)
	if err != nil {
		backend.Close()
		return err
	}

	outputSize := cfg.OutputSize
	if outputSize <= 0 {
		outputSize = cfg.Diffusion.RenderSize
	}
	engine := diffusion.NewEngine(backend, state, sem, cfg.Diffusion.RenderSize, outputSize)

	s.setEngineSet(&engineSet{backend: backend, state: state, engine: engine})

	slog.Info("modell geladen",
		"backend", cfg.Backend,
		"dir", cfg.ModelDir,
		"render", cfg.Diffusion.RenderSize,
		"dauer", time.Since(start))
	return nil
}

// Port gibt den tatsaechlich gebundenen Port zurueck
func (s *Server) Port() int {
	if tcp, ok := s.addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

func (s *Server) closeBackend() {
	if es := s.engineSet(); es != nil {
		if err := es.backend.Close(); err != nil {
			slog.Warn("backend schliessen fehlgeschlagen", "error", err)
		}
	}
}
