// Package admin serves a small local control surface for the probe session:
// an HTML page, JSON endpoints and a WebSocket stream of session snapshots.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/sim"
	"soilpulse-sim/internal/soil"
	"soilpulse-sim/internal/visual"
)

// Controller is the part of the session controller exposed over HTTP.
type Controller interface {
	Snapshot() soil.Session
	Simulate(target soil.Status) error
	Reset()
	Subscribe(fn func(soil.Session)) (cancel func())
}

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

//go:embed templates/index.html
var content embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Only bound to a local address.
		return true
	},
}

// Server holds the admin HTTP handlers.
type Server struct {
	ctl      Controller
	driver   *visual.Driver
	interval time.Duration
	tpl      *template.Template
	mux      *http.ServeMux
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	cancel  func()
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// wsEvent is a command sent by the page over the socket.
type wsEvent struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
}

// NewServer wires the handlers to ctl and subscribes to its updates.
// frameInterval paces the server-side rod animation served on /frame.
func NewServer(ctl Controller, frameInterval time.Duration, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	tpl := template.Must(template.New("index.html").Funcs(template.FuncMap{
		"color": func(s soil.Status) string { return visual.ColorFor(s) },
	}).ParseFS(content, "templates/index.html"))
	s := &Server{
		ctl:      ctl,
		driver:   visual.NewDriver(),
		interval: frameInterval,
		tpl:      tpl,
		mux:      http.NewServeMux(),
		log:      log,
		clients:  make(map[*client]struct{}),
	}
	s.routes()
	s.cancel = ctl.Subscribe(s.onSession)
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("POST /scan", s.handleScan)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("GET /frame", s.handleFrame)
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// Handler returns the admin routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves on addr and runs the rod animation until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	go visual.Run(ctx, s.interval, s.driver, nil)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("admin server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close unsubscribes from the controller and drops all stream clients.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()
}

func (s *Server) onSession(sess soil.Session) {
	s.driver.Apply(sess.Status, sess.Inserted)
	data, err := json.Marshal(sess)
	if err != nil {
		s.log.Error("encode session", "error", err)
		return
	}
	s.broadcast(data)
}

// broadcast never blocks; clients that cannot keep up are dropped.
func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.enqueueLocked(c, data)
	}
}

// enqueueLocked queues data for c without blocking and drops c when its
// buffer is full. s.mu must be held.
func (s *Server) enqueueLocked(c *client, data []byte) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		s.log.Warn("dropping slow stream client", "remote", c.remote)
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.ctl.Snapshot()
	data := struct {
		Session soil.Session
		Metrics []soil.Metric
		Targets []soil.Status
	}{Session: sess, Targets: soil.Targets}
	if sess.Result != nil {
		data.Metrics = soil.Metrics(sess.Result.Data)
	}
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Error("render index", "error", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	target, err := soil.ParseTarget(r.URL.Query().Get("target"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctl.Simulate(target); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, sim.ErrIllegalTransition):
			status = http.StatusConflict
		case errors.Is(err, soil.ErrInvalidTarget):
			status = http.StatusBadRequest
		case errors.Is(err, sim.ErrClosed):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.ctl.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctl.Reset()
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.driver.Frame())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	c := &client{conn: conn, remote: conn.RemoteAddr().String(), send: make(chan []byte, clientBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	if data, err := json.Marshal(s.ctl.Snapshot()); err == nil {
		s.mu.Lock()
		s.enqueueLocked(c, data)
		s.mu.Unlock()
	}

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug("websocket write", "error", err)
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) readLoop(c *client) {
	defer s.remove(c)
	for {
		var ev wsEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read", "error", err)
			}
			return
		}
		switch ev.Type {
		case "scan":
			target, err := soil.ParseTarget(ev.Target)
			if err == nil {
				err = s.ctl.Simulate(target)
			}
			if err != nil {
				s.log.Info("stream scan rejected", "target", ev.Target, "error", err)
			}
		case "reset":
			s.ctl.Reset()
		default:
			s.log.Debug("unknown stream event", "type", ev.Type)
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		close(c.send)
		delete(s.clients, c)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
