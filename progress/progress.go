// progress.go - Mehrzeilige Fortschritts-Anzeige fuer das Terminal
// Hauptfunktionen: NewProgress, Add, Stop
package progress

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"
)

// State ist eine einzelne Anzeige-Zeile (Bar oder Spinner)
type State interface {
	String() string
}

// Progress verwaltet mehrere Anzeige-Zeilen und zeichnet sie periodisch neu
type Progress struct {
	mu sync.Mutex
	// gepufferte Ausgabe, damit das Terminal nicht flackert
	w *bufio.Writer

	pos int

	ticker *time.Ticker
	states []State
}

// NewProgress - Erstellt eine Anzeige und startet das periodische Neuzeichnen
func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: bufio.NewWriter(w), ticker: time.NewTicker(100 * time.Millisecond)}
	go p.start(p.ticker.C)
	return p
}

// Add - Haengt eine neue Anzeige-Zeile an
func (p *Progress) Add(key string, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
}

// Stop - Haelt die Anzeige an und laesst die letzten Zeilen stehen
func (p *Progress) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}

	if p.ticker == nil {
		return false
	}

	p.ticker.Stop()
	p.ticker = nil
	p.render()
	fmt.Fprint(p.w, "\n")
	p.w.Flush()
	return true
}

func (p *Progress) render() {
	if len(p.states) == 0 {
		return
	}

	fmt.Fprint(p.w, "\033[?25l")
	defer fmt.Fprint(p.w, "\033[?25h")

	// bereits gezeichnete Zeilen loeschen
	for i := 0; i < p.pos; i++ {
		if i > 0 {
			fmt.Fprint(p.w, "\033[A")
		}
		fmt.Fprint(p.w, "\033[2K\033[1G")
	}

	for i, state := range p.states {
		fmt.Fprint(p.w, state.String(), "\033[K")
		if i < len(p.states)-1 {
			fmt.Fprint(p.w, "\n")
		}
	}
	p.pos = len(p.states)

	p.w.Flush()
}

func (p *Progress) start(tick <-chan time.Time) {
	// nach Stop parkt die Goroutine auf dem angehaltenen Kanal
	// bis zum Prozessende
	for range tick {
		p.mu.Lock()
		p.render()
		p.mu.Unlock()
	}
}
