// config.go - Haupt-Konfigurationsfunktionen fuer Flowpaint
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (FLOWPAINT_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (FLOWPAINT_ORIGINS)
// - Models: Gibt Modell-Verzeichnis zurueck (FLOWPAINT_MODELS)
// - LoadTimeout: Gibt Timeout fuer das Backend-Laden zurueck (FLOWPAINT_LOAD_TIMEOUT)
// - LogLevel: Gibt Log-Level zurueck (FLOWPAINT_DEBUG)
// - Var: Liest eine Environment-Variable mit Quote-Trimming
// - AsMap/Values: Export aller Konfigurationen
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via FLOWPAINT_HOST
// Default: http://127.0.0.1:9824
func Host() *url.URL {
	defaultPort := "9824"

	s := strings.TrimSpace(Var("FLOWPAINT_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via FLOWPAINT_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost und App-Protokolle
func AllowedOrigins() (origins []string) {
	if s := Var("FLOWPAINT_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	// Standard-Origins fuer localhost
	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	// App-Protokolle (der Controller laeuft als Tauri-App)
	origins = append(origins,
		"app://*",
		"file://*",
		"tauri://*",
	)

	return origins
}

// Models gibt das Modell-Verzeichnis zurueck
// Konfigurierbar via FLOWPAINT_MODELS
// Default: $HOME/.flowpaint/models
func Models() string {
	if s := Var("FLOWPAINT_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".flowpaint", "models")
}

// LoadTimeout gibt das Timeout fuer das Backend-Laden zurueck
// Konfigurierbar via FLOWPAINT_LOAD_TIMEOUT
// 0 oder negative Werte = unendlich
// Default: 2 Minuten (der Controller wartet so lange auf das READY-Signal)
func LoadTimeout() (loadTimeout time.Duration) {
	loadTimeout = 2 * time.Minute
	if s := Var("FLOWPAINT_LOAD_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			loadTimeout = d
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			loadTimeout = time.Duration(n) * time.Second
		}
	}

	if loadTimeout <= 0 {
		return time.Duration(math.MaxInt64)
	}

	return loadTimeout
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via FLOWPAINT_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("FLOWPAINT_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"FLOWPAINT_DEBUG":        {"FLOWPAINT_DEBUG", LogLevel(), "Show additional debug information (e.g. FLOWPAINT_DEBUG=1)"},
		"FLOWPAINT_HOST":         {"FLOWPAINT_HOST", Host(), "IP Address for the stream server (default 127.0.0.1:9824)"},
		"FLOWPAINT_LOAD_TIMEOUT": {"FLOWPAINT_LOAD_TIMEOUT", LoadTimeout(), "How long to allow the model load to stall before giving up (default \"2m\")"},
		"FLOWPAINT_MODELS":       {"FLOWPAINT_MODELS", Models(), "The path to the models directory"},
		"FLOWPAINT_ORIGINS":      {"FLOWPAINT_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
