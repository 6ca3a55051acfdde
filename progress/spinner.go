// spinner.go - Drehender Status-Indikator fuer laufende Schritte
// Hauptfunktionen: NewSpinner, Stop, String
package progress

import (
	"strings"
	"time"
)

// Spinner zeigt einen Schritt ohne bekannten Fortschritt an
type Spinner struct {
	message string
	parts   []string

	value int

	ticker  *time.Ticker
	started time.Time
	stopped time.Time
}

// NewSpinner - Erstellt einen Spinner und startet die Animation
func NewSpinner(message string) *Spinner {
	s := &Spinner{
		message: message,
		parts:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		started: time.Now(),
		ticker:  time.NewTicker(100 * time.Millisecond),
	}
	go s.start(s.ticker.C)
	return s
}

func (s *Spinner) String() string {
	var sb strings.Builder

	if message := strings.TrimSpace(s.message); message != "" {
		sb.WriteString(message)
		sb.WriteString(" ")
	}

	if s.stopped.IsZero() {
		sb.WriteString(s.parts[s.value])
	}

	return sb.String()
}

func (s *Spinner) start(tick <-chan time.Time) {
	for range tick {
		if !s.stopped.IsZero() {
			return
		}
		s.value = (s.value + 1) % len(s.parts)
	}
}

// Stop - Haelt die Animation an
func (s *Spinner) Stop() {
	if s.stopped.IsZero() {
		s.stopped = time.Now()
		s.ticker.Stop()
	}
}
