package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// WebServer provides health, status, metrics and run-event endpoints
type WebServer struct {
	planner   *Planner
	metrics   *Metrics
	logger    *zap.Logger
	server    *http.Server
	mux       *http.ServeMux
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
	stopOnce  sync.Once

	runCtx context.Context
	busy   atomic.Bool
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version,omitempty"`
	Running   bool   `json:"running"`
	Uptime    string `json:"uptime"`
}

// Version is reported by the health endpoint.
const Version = "1.0.0"

// NewWebServer creates the status server. It serves nothing until a planner is attached.
func NewWebServer(port int, metrics *Metrics, logger *zap.Logger) *WebServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	ws := &WebServer{
		metrics:   metrics,
		logger:    logger,
		mux:       mux,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		runCtx:    context.Background(),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/api/health", ws.healthHandler)
	mux.HandleFunc("/api/ready", ws.readinessHandler)
	mux.HandleFunc("/api/status", ws.statusHandler)
	mux.HandleFunc("/api/runs", ws.runHandler)
	mux.HandleFunc("/api/ws", ws.wsHandler)
	if metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
	return ws
}

// Attach sets the planner whose state is served and whose runs can be
// triggered. Triggered runs use ctx.
func (ws *WebServer) Attach(ctx context.Context, p *Planner) {
	ws.planner = p
	ws.runCtx = ctx
}

// Handler returns the HTTP handler of the server.
func (ws *WebServer) Handler() http.Handler {
	return ws.mux
}

// Start starts serving and broadcasting in the background
func (ws *WebServer) Start() error {
	go ws.handleBroadcasts()
	go ws.broadcastStatus()

	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error("web server error", zap.Error(err))
		}
	}()
	ws.logger.Info("web server started", zap.String("addr", ws.server.Addr))
	return nil
}

// Stop gracefully stops the web server
func (ws *WebServer) Stop(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.done) })

	ws.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})

	return ws.server.Shutdown(ctx)
}

// Publish implements EventSink by broadcasting the event to websocket clients.
// Events are dropped when the broadcast queue is full.
func (ws *WebServer) Publish(ev Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		ws.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	select {
	case ws.broadcast <- message:
	default:
		ws.logger.Warn("event queue full, dropping event", zap.String("type", ev.Type))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// healthHandler handles the /api/health endpoint
func (ws *WebServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		Running:   ws.busy.Load(),
		Uptime:    formatUptime(time.Since(ws.startTime)),
	}
	status := http.StatusOK
	if ws.planner == nil {
		health.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// readinessHandler handles the /api/ready endpoint. The server is ready when
// it can accept a run.
func (ws *WebServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ready := ws.planner != nil && !ws.busy.Load()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statusHandler handles the /api/status endpoint
func (ws *WebServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ws.planner == nil {
		http.Error(w, "Planner not attached", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, ws.planner.GetStatus())
}

// runHandler handles POST /api/runs?scenario=name and starts the run in the
// background. Only one run executes at a time.
func (ws *WebServer) runHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ws.planner == nil {
		http.Error(w, "Planner not attached", http.StatusServiceUnavailable)
		return
	}
	sc, err := ws.planner.GetConfig().Scenario(r.URL.Query().Get("scenario"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if !ws.busy.CompareAndSwap(false, true) {
		http.Error(w, "A run is already in progress", http.StatusConflict)
		return
	}

	go func() {
		defer ws.busy.Store(false)
		if _, err := ws.planner.Run(ws.runCtx, sc); err != nil {
			ws.logger.Warn("triggered run failed", zap.String("scenario", sc.Name), zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"scenario": sc.Name, "accepted": true})
}

// wsHandler handles WebSocket connections
func (ws *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	ws.clients.Store(conn, true)
	ws.logger.Debug("websocket client connected", zap.Int("clients", ws.clientCount()))

	ws.sendStatusToClient(conn)

	defer func() {
		ws.clients.Delete(conn)
		conn.Close()
		ws.logger.Debug("websocket client disconnected", zap.Int("clients", ws.clientCount()))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Warn("websocket error", zap.Error(err))
			}
			break
		}
	}
}

func (ws *WebServer) clientCount() int {
	n := 0
	ws.clients.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}

// handleBroadcasts sends messages to all connected clients
func (ws *WebServer) handleBroadcasts() {
	for {
		select {
		case message := <-ws.broadcast:
			ws.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					ws.logger.Warn("websocket write error", zap.Error(err))
					conn.Close()
					ws.clients.Delete(conn)
				}
				return true
			})
		case <-ws.done:
			return
		}
	}
}

// broadcastStatus periodically broadcasts the planner status
func (ws *WebServer) broadcastStatus() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ws.planner == nil || ws.clientCount() == 0 {
				continue
			}
			message, err := json.Marshal(ws.statusMessage())
			if err != nil {
				ws.logger.Error("failed to marshal status", zap.Error(err))
				continue
			}
			select {
			case ws.broadcast <- message:
			default:
			}
		case <-ws.done:
			return
		}
	}
}

func (ws *WebServer) statusMessage() map[string]any {
	msg := map[string]any{
		"type":      "status_update",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if ws.planner != nil {
		msg["status"] = ws.planner.GetStatus()
	}
	return msg
}

// sendStatusToClient sends status data to a specific client
func (ws *WebServer) sendStatusToClient(conn *websocket.Conn) {
	if err := conn.WriteJSON(ws.statusMessage()); err != nil {
		ws.logger.Warn("failed to send initial status", zap.Error(err))
	}
}

// formatUptime formats a duration as a string with seconds rounded to integer
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
