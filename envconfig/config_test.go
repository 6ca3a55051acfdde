// config_test.go - Tests fuer die Environment-Konfiguration
package envconfig

import (
	"log/slog"
	"math"
	"testing"
	"time"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value string
		want  string
	}{
		"empty":            {"", "127.0.0.1:9824"},
		"only port":        {":1234", "127.0.0.1:1234"},
		"address":          {"1.2.3.4", "1.2.3.4:9824"},
		"address und port": {"1.2.3.4:1234", "1.2.3.4:1234"},
		"scheme":           {"http://1.2.3.4", "1.2.3.4:80"},
		"https":            {"https://1.2.3.4", "1.2.3.4:443"},
		"quoted":           {"\"1.2.3.4:1234\"", "1.2.3.4:1234"},
		"zu grosser port":  {"1.2.3.4:66000", "1.2.3.4:9824"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("FLOWPAINT_HOST", tt.value)
			if got := Host().Host; got != tt.want {
				t.Errorf("Host() = %q, erwartet %q", got, tt.want)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"true":  slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.LevelDebug - 4,
		"-3":    slog.Level(12),
	}

	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("FLOWPAINT_DEBUG", value)
			if got := LogLevel(); got != want {
				t.Errorf("LogLevel() = %v, erwartet %v", got, want)
			}
		})
	}
}

func TestLoadTimeout(t *testing.T) {
	cases := map[string]time.Duration{
		"":    2 * time.Minute,
		"1m":  time.Minute,
		"30":  30 * time.Second,
		"0":   time.Duration(math.MaxInt64),
		"-5s": time.Duration(math.MaxInt64),
	}

	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("FLOWPAINT_LOAD_TIMEOUT", value)
			if got := LoadTimeout(); got != want {
				t.Errorf("LoadTimeout() = %v, erwartet %v", got, want)
			}
		})
	}
}

func TestVar(t *testing.T) {
	cases := map[string]string{
		"value":       "value",
		" value ":     "value",
		"\"value\"":   "value",
		"'value'":     "value",
		" \"value\" ": "value",
	}

	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("FLOWPAINT_VAR", value)
			if got := Var("FLOWPAINT_VAR"); got != want {
				t.Errorf("Var() = %q, erwartet %q", got, want)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("FLOWPAINT_ORIGINS", "http://10.0.0.1")

	origins := AllowedOrigins()
	if origins[0] != "http://10.0.0.1" {
		t.Errorf("origins[0] = %q, erwartet %q", origins[0], "http://10.0.0.1")
	}

	// Tauri-Protokoll muss fuer den Controller immer erlaubt sein
	found := false
	for _, o := range origins {
		if o == "tauri://*" {
			found = true
		}
	}
	if !found {
		t.Error("tauri://* fehlt in den erlaubten Origins")
	}
}
