// Package server - Haupt-Router und Server-Setup fuer den Flowpaint Sidecar
// Beinhaltet: Server-Struct, Router-Registrierung, Middleware, Status-Handler
package server

import (
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pictaflux/flowpaint/api"
	"github.com/pictaflux/flowpaint/diffusion"
	"github.com/pictaflux/flowpaint/envconfig"
	"github.com/pictaflux/flowpaint/ml"
	"github.com/pictaflux/flowpaint/version"
)

var mode string = gin.DebugMode

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// engineSet buendelt das geladene Backend mit Engine und Stream-Zustand.
// Existiert erst, wenn das Modell im Speicher ist.
type engineSet struct {
	backend ml.Backend
	state   *diffusion.State
	engine  *diffusion.Engine
}

// Server verwaltet den HTTP-Server und die Stream-Verbindungen
type Server struct {
	addr net.Addr

	mu     sync.RWMutex
	status string
	es     *engineSet
}

// Status gibt den Sidecar-Status zurueck (loading, ready, error)
func (s *Server) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status == "" {
		return api.StatusLoading
	}
	return s.status
}

func (s *Server) setStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Server) engineSet() *engineSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.es
}

func (s *Server) setEngineSet(es *engineSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.es = es
}

// isLocalIP prueft ob die IP-Adresse zu einem lokalen Interface gehoert
func isLocalIP(ip netip.Addr) bool {
	if interfaces, err := net.Interfaces(); err == nil {
		for _, iface := range interfaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}

			for _, a := range addrs {
				if parsed, _, err := net.ParseCIDR(a.String()); err == nil {
					if parsed.String() == ip.String() {
						return true
					}
				}
			}
		}
	}

	return false
}

// allowedHost prueft ob der Host erlaubt ist
func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	tlds := []string{
		"localhost",
		"local",
		"internal",
	}

	// Pruefe ob der Host eine lokale TLD hat
	for _, tld := range tlds {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return false
}

// allowedHostsMiddleware blockiert Anfragen von nicht erlaubten Hosts.
// Der Sidecar lauscht auf Loopback; das schuetzt gegen DNS-Rebinding.
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || isLocalIP(addr) {
				c.Next()
				return
			}
		}

		if allowedHost(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusForbidden)
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "Flowpaint is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Flowpaint is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Sidecar-Status fuer den Controller
	r.GET("/health", s.HealthHandler)

	// Video-Stream (WebSocket)
	r.GET("/stream", s.StreamHandler)

	return r, nil
}

// HealthHandler meldet den Lade-Zustand der Engine
func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.StatusResponse{Status: s.Status()})
}
