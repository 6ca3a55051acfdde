// bar.go - Fortschrittsbalken fuer Datei-Downloads
// Hauptfunktionen: NewBar, Set, String
package progress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/pictaflux/flowpaint/format"
)

// Bar zeigt den Fortschritt eines einzelnen Downloads an
type Bar struct {
	message string

	total   int64
	current int64

	started time.Time
	stopped time.Time
}

// NewBar - Erstellt einen Balken mit Startwert
func NewBar(message string, total, initial int64) *Bar {
	return &Bar{
		message: message,
		total:   total,
		current: initial,
		started: time.Now(),
	}
}

// Set - Aktualisiert den Stand; bei total wird die Endzeit festgehalten
func (b *Bar) Set(value int64) {
	if value >= b.total {
		value = b.total
		if b.stopped.IsZero() {
			b.stopped = time.Now()
		}
	}
	b.current = value
}

func (b *Bar) String() string {
	termWidth, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		termWidth = 80
	}

	var pre strings.Builder
	pre.WriteString(fmt.Sprintf("%s %3.0f%%", b.message, b.percent()))

	var suf strings.Builder
	suf.WriteString(fmt.Sprintf(" %s/%s", format.HumanBytes(b.current), format.HumanBytes(b.total)))
	if b.current >= b.total {
		suf.WriteString(fmt.Sprintf("  %s", b.elapsed().Round(time.Second)))
	} else if rate := b.rate(); rate > 0 {
		suf.WriteString(fmt.Sprintf("  %s/s  %s", format.HumanBytes(int64(rate)), b.remaining().Round(time.Second)))
	}

	// Balkenbreite aus der Terminalbreite ableiten; Nachrichten sind ASCII,
	// daher reicht die Byte-Laenge als Naeherung
	barWidth := termWidth - pre.Len() - suf.Len() - 4
	if barWidth <= 2 {
		return pre.String() + suf.String()
	}

	filled := int(float64(barWidth) * b.percent() / 100)
	if filled > barWidth {
		filled = barWidth
	}

	var mid strings.Builder
	mid.WriteString(" ▕")
	mid.WriteString(strings.Repeat("█", filled))
	mid.WriteString(strings.Repeat(" ", barWidth-filled))
	mid.WriteString("▏")

	return pre.String() + mid.String() + suf.String()
}

func (b *Bar) percent() float64 {
	if b.total == 0 {
		return 0
	}
	return float64(b.current) / float64(b.total) * 100
}

func (b *Bar) elapsed() time.Duration {
	stopped := b.stopped
	if stopped.IsZero() {
		stopped = time.Now()
	}
	return stopped.Sub(b.started)
}

// rate in Bytes pro Sekunde, gemittelt ueber die gesamte Laufzeit
func (b *Bar) rate() float64 {
	elapsed := b.elapsed()
	if elapsed <= 0 {
		return 0
	}
	return float64(b.current) / elapsed.Seconds()
}

func (b *Bar) remaining() time.Duration {
	rate := b.rate()
	if rate <= 0 || b.current >= b.total {
		return 0
	}
	return time.Duration(float64(b.total-b.current) / rate * float64(time.Second))
}
