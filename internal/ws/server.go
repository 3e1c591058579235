package ws

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hostpulse/server/internal/config"
	"github.com/hostpulse/server/internal/frontend"
	"github.com/hostpulse/server/internal/monitor"
	"github.com/hostpulse/server/internal/session"
	"github.com/hostpulse/server/internal/sysinfo"
	"github.com/hostpulse/server/internal/telemetry"
)

const shutdownReason = "server shutting down"

// entry is one live session and the transport it writes to.
type entry struct {
	session *session.Session
	client  *client
}

// HealthSource reports per-sampler health for /health.
type HealthSource interface {
	Health() []monitor.SamplerStatus
}

type Server struct {
	config         *config.Config
	store          *telemetry.Store
	static         session.StaticSource
	health         HealthSource
	upgrader       websocket.Upgrader
	allowAll       bool
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	credential     string

	sessions *xsync.MapOf[string, *entry]
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	closing bool
	live    sync.WaitGroup
}

func NewServer(cfg *config.Config, store *telemetry.Store, static session.StaticSource) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         cfg,
		store:          store,
		static:         static,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		sessions:       xsync.NewMapOf[string, *entry](),
		ctx:            ctx,
		cancel:         cancel,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:       s.checkOrigin,
		EnableCompression: true,
	}

	if cfg.Auth.Required {
		s.credential = base64.StdEncoding.EncodeToString([]byte(cfg.Auth.Password))
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			s.allowAll = true
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetHealthSource configures the sampler health reported by /health.
// Must be called before Handler.
func (s *Server) SetHealthSource(h HealthSource) {
	s.health = h
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	path := s.socketPath()
	mux.HandleFunc(path, s.handleWS)
	mux.HandleFunc(path+"/", s.handleWS)

	logoPrefix := strings.TrimSuffix(s.config.Server.LogoPrefix, "/")
	mux.Handle(logoPrefix+"/", s.requireAuth(frontend.LogoHandler(logoPrefix)))
	mux.Handle("GET /health", s.requireAuth(http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /{$}", s.requireAuth(http.HandlerFunc(s.handleSummary)))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})

	return securityHeaders(s.upgradeGuard(mux))
}

func (s *Server) SessionCount() int {
	return s.sessions.Size()
}

func (s *Server) socketPath() string {
	p := strings.TrimSuffix(s.config.Session.Path, "/")
	if p == "" {
		return "/socket"
	}
	return p
}

func (s *Server) matchesSocketPath(p string) bool {
	base := s.socketPath()
	return p == base || strings.HasPrefix(p, base+"/")
}

// upgradeGuard rejects WebSocket upgrades aimed anywhere but the telemetry
// path before any handler runs.
func (s *Server) upgradeGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) && !s.matchesSocketPath(r.URL.Path) {
			w.Header().Set("Connection", "close")
			writeError(w, http.StatusBadRequest, "Bad Request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeSocket(r) {
		w.Header().Set("Connection", "close")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	s.mu.RLock()
	if s.closing {
		s.mu.RUnlock()
		w.Header().Set("Connection", "close")
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable")
		return
	}
	s.live.Add(1)
	s.mu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.live.Done()
		log.Printf("ws upgrade error: %v", err)
		return
	}

	cfg := s.config.Session
	c := newClient(conn, cfg.SendBuffer, cfg.WriteTimeout, cfg.CloseGrace)

	scheme := r.URL.Query().Get("scheme")
	if scheme == "" {
		scheme = cfg.Scheme
	}
	sess := session.New(uuid.NewString(), c, session.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatGrace:    cfg.HeartbeatGrace,
		PushInterval:      cfg.PushInterval,
		MinPushInterval:   cfg.MinPushInterval,
		Scheme:            sysinfo.NormalizeScheme(scheme),
		Store:             s.store,
		Static:            s.static,
	})
	s.sessions.Store(sess.ID(), &entry{session: sess, client: c})

	// Shutdown may have ranged over the registry before this entry landed.
	s.mu.RLock()
	closing := s.closing
	s.mu.RUnlock()
	if closing {
		sess.Close(session.CloseGoingAway, shutdownReason)
	}

	go s.serve(sess, c, r.RemoteAddr)
}

// serve runs the session's read side. Frames are handed to the session one
// at a time; when reading fails the session is stopped and removed.
func (s *Server) serve(sess *session.Session, c *client, remote string) {
	defer s.live.Done()
	defer func() {
		sess.Stop()
		c.shutdown()
		s.sessions.Delete(sess.ID())
		code, reason := sess.CloseStatus()
		log.Printf("WebSocket session %s disconnected: %s (close %d %q)", sess.ID(), remote, code, reason)
	}()

	log.Printf("WebSocket session %s connected: %s", sess.ID(), remote)
	if err := sess.Start(s.ctx); err != nil {
		log.Printf("session %s: start: %v", sess.ID(), err)
	}

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && sess.State() == session.Active {
				log.Printf("session %s: read error: %v", sess.ID(), err)
			}
			return
		}
		sess.Handle(mt == websocket.BinaryMessage, data)
	}
}

// Shutdown closes every live session with 1001 and waits for their
// transports to be torn down or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.sessions.Range(func(_ string, e *entry) bool {
		e.session.Close(session.CloseGoingAway, shutdownReason)
		return true
	})

	done := make(chan struct{})
	go func() {
		s.live.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Peers that never answered the close frame lose their transport.
		s.sessions.Range(func(_ string, e *entry) bool {
			e.client.conn.Close()
			return true
		})
		return ctx.Err()
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.static.Summary(r.Context(), r.URL.Query().Get("scheme"))
	if err != nil {
		log.Printf("static summary error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type healthResponse struct {
	Sessions int                     `json:"sessions"`
	Samplers []monitor.SamplerStatus `json:"samplers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Sessions: s.SessionCount(),
		Samplers: []monitor.SamplerStatus{},
	}
	if s.health != nil {
		resp.Samplers = s.health.Health()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.matchCredential(r.Header.Get("Authorization")) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorizeSocket accepts the credential from the Authorization header or
// the pw query parameter; browsers cannot set headers on a WebSocket dial.
func (s *Server) authorizeSocket(r *http.Request) bool {
	if s.matchCredential(r.Header.Get("Authorization")) {
		return true
	}
	return s.matchCredential(r.URL.Query().Get("pw"))
}

func (s *Server) matchCredential(got string) bool {
	if s.credential == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.credential)) == 1
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowAll {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ws: encoding response: %v", err)
	}
}
