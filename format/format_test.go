// format_test.go - Unit Tests fuer die CLI-Formatierung
package format

import (
	"testing"
	"time"
)

// TestHumanBytes testet die Groessen-Formatierung
func TestHumanBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1 KB"},
		{1536, "1.5 KB"},
		{10500000, "10 MB"},
		{424000000, "424 MB"},
		{1200000000, "1.2 GB"},
		{7800000000000, "7.8 TB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := HumanBytes(tt.input); got != tt.expected {
				t.Errorf("HumanBytes(%d) = %q, erwartet %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestHumanTime testet die relative Zeit-Formatierung
func TestHumanTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{"Nullwert", time.Time{}, "Never"},
		{"Sekunden", now.Add(-30 * time.Second), "30 seconds ago"},
		{"Etwa eine Minute", now.Add(-70 * time.Second), "About a minute ago"},
		{"Minuten", now.Add(-2 * time.Minute), "2 minutes ago"},
		{"Stunden", now.Add(-90 * time.Minute), "2 hours ago"},
		{"Tage", now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{"Zukunft", now.Add(2*time.Hour + time.Minute), "2 hours from now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HumanTime(tt.input, "Never"); got != tt.expected {
				t.Errorf("HumanTime = %q, erwartet %q", got, tt.expected)
			}
		})
	}
}
