package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sixdouglas/suncalc"

	"github.com/devskill-org/pv-forecast/forecast"
)

// WebServer provides HTTP endpoints for health checking, monitoring, and the
// live forecast feed
type WebServer struct {
	service   *Service
	server    *http.Server
	port      int
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Version   string         `json:"version,omitempty"`
	Forecast  ForecastHealth `json:"forecast"`
	System    SystemHealth   `json:"system"`
}

// ForecastHealth represents forecast-specific health information
type ForecastHealth struct {
	IsRunning    bool       `json:"is_running"`
	HasForecast  bool       `json:"has_forecast"`
	PointCount   int        `json:"point_count"`
	Degraded     bool       `json:"degraded"`
	LastRefresh  *time.Time `json:"last_refresh,omitempty"`
	StepMinutes  int        `json:"step_minutes"`
	HorizonHours int        `json:"horizon_hours"`
}

// SystemHealth represents system-level health information
type SystemHealth struct {
	Uptime     string `json:"uptime"`
	Memory     string `json:"memory,omitempty"`
	Goroutines int    `json:"goroutines,omitempty"`
}

// NewWebServer creates a new web server with health and forecast endpoints
func NewWebServer(service *Service, port int) *WebServer {
	if port <= 0 {
		return nil // Web server disabled
	}

	mux := http.NewServeMux()
	ws := &WebServer{
		service:   service,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	// Register API routes
	mux.HandleFunc("/api/health", ws.healthHandler)
	mux.HandleFunc("/api/ready", ws.readinessHandler)
	mux.HandleFunc("/api/status", ws.statusHandler)
	mux.HandleFunc("/api/forecast", ws.forecastHandler)
	mux.HandleFunc("/api/ws", ws.wsHandler)

	// Serve static files from web folder
	fs := http.FileServer(http.Dir("./web/dist"))
	mux.Handle("/", fs)

	return ws
}

// Start starts the web server
func (ws *WebServer) Start() error {
	if ws == nil {
		return nil // Web server disabled
	}

	// Start the broadcast handler
	go ws.handleBroadcasts()

	// Start periodic status broadcaster
	go ws.broadcastStatus()

	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't crash the main application
			fmt.Printf("Web server error: %v\n", err)
		}
	}()

	return nil
}

// Stop gracefully stops the web server
func (ws *WebServer) Stop(ctx context.Context) error {
	if ws == nil {
		return nil // Web server disabled
	}

	// Signal goroutines to stop
	close(ws.done)

	// Close all WebSocket connections
	ws.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})

	return ws.server.Shutdown(ctx)
}

// BroadcastForecast pushes a freshly computed forecast to all WebSocket clients
func (ws *WebServer) BroadcastForecast(points []forecast.Point, degraded bool) {
	if ws == nil {
		return
	}

	message, err := json.Marshal(map[string]any{
		"type":      "forecast_update",
		"degraded":  degraded,
		"points":    points,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		fmt.Printf("Failed to marshal forecast data: %v\n", err)
		return
	}

	select {
	case ws.broadcast <- message:
	default:
		// Broadcast buffer full, drop the update
	}
}

// healthHandler handles the /api/health endpoint
func (ws *WebServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := ws.buildHealth()

	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// readinessHandler handles the /api/ready endpoint
func (ws *WebServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := ws.service.GetStatus()

	ready := map[string]any{
		"ready":     status.IsRunning && status.HasForecast,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")

	if !status.IsRunning || !status.HasForecast {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(ready); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// statusHandler handles the /api/status endpoint (detailed status)
func (ws *WebServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := ws.buildStatusData()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// forecastHandler handles the /api/forecast endpoint
func (ws *WebServer) forecastHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	points, refreshedAt, degraded := ws.service.LatestForecast()
	if points == nil {
		http.Error(w, "Forecast not yet available", http.StatusServiceUnavailable)
		return
	}

	response := map[string]any{
		"points":       points,
		"degraded":     degraded,
		"refreshed_at": refreshedAt.UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// wsHandler handles WebSocket connections
func (ws *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("WebSocket upgrade error: %v\n", err)
		return
	}

	// Register new client
	ws.clients.Store(conn, true)

	clientCount := 0
	ws.clients.Range(func(key, value any) bool {
		clientCount++
		return true
	})
	fmt.Printf("New WebSocket client connected. Total clients: %d\n", clientCount)

	// Send initial data immediately
	ws.sendStatusToClient(conn)

	// Handle client disconnection
	defer func() {
		ws.clients.Delete(conn)
		conn.Close()

		clientCount := 0
		ws.clients.Range(func(key, value any) bool {
			clientCount++
			return true
		})
		fmt.Printf("WebSocket client disconnected. Total clients: %d\n", clientCount)
	}()

	// Read messages from client (ping/pong, close)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("WebSocket error: %v\n", err)
			}
			break
		}
	}
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

				err := conn.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					fmt.Printf("WebSocket write error: %v\n", err)
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

// broadcastStatus periodically broadcasts status updates
func (ws *WebServer) broadcastStatus() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hasClients := false
			ws.clients.Range(func(key, value any) bool {
				hasClients = true
				return false // Stop after finding first client
			})

			if hasClients {
				data := map[string]any{
					"type":   "status_update",
					"health": ws.buildHealth(),
					"status": ws.buildStatusData(),
				}
				message, err := json.Marshal(data)
				if err != nil {
					fmt.Printf("Failed to marshal status data: %v\n", err)
					continue
				}
				ws.broadcast <- message
			}
		case <-ws.done:
			return
		}
	}
}

// sendStatusToClient sends status data to a specific client
func (ws *WebServer) sendStatusToClient(conn *websocket.Conn) {
	data := map[string]any{
		"type":   "status_update",
		"health": ws.buildHealth(),
		"status": ws.buildStatusData(),
	}
	if err := conn.WriteJSON(data); err != nil {
		fmt.Printf("Failed to send initial data: %v\n", err)
	}
}

// buildHealth builds the health response
func (ws *WebServer) buildHealth() HealthResponse {
	status := ws.service.GetStatus()
	config := ws.service.GetConfig()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
		Forecast: ForecastHealth{
			IsRunning:    status.IsRunning,
			HasForecast:  status.HasForecast,
			PointCount:   status.PointCount,
			Degraded:     status.Degraded,
			LastRefresh:  status.LastRefresh,
			StepMinutes:  config.StepMinutes,
			HorizonHours: config.HorizonHours,
		},
		System: SystemHealth{
			Uptime:     formatUptime(time.Since(ws.startTime)),
			Goroutines: 0, // Placeholder - would need runtime.NumGoroutine()
		},
	}

	if !status.IsRunning {
		health.Status = "unhealthy"
	}

	return health
}

// buildStatusData builds the detailed status payload
func (ws *WebServer) buildStatusData() map[string]any {
	status := ws.service.GetStatus()
	config := ws.service.GetConfig()

	now := time.Now()
	sunTimes := suncalc.GetTimes(now, config.Latitude, config.Longitude)

	sun := map[string]any{
		"sunrise": sunTimes["sunrise"].Value.UTC().Format(time.RFC3339),
		"sunset":  sunTimes["sunset"].Value.UTC().Format(time.RFC3339),
	}

	forecastData := map[string]any{
		"has_forecast": status.HasForecast,
		"point_count":  status.PointCount,
		"degraded":     status.Degraded,
	}
	if currentW, ok := ws.service.ForecastAt(now); ok {
		forecastData["current_watts"] = currentW
	}
	if status.LastRefresh != nil {
		forecastData["refreshed_at"] = status.LastRefresh.UTC().Format(time.RFC3339)
	}

	return map[string]any{
		"service_status": status,
		"site": map[string]any{
			"latitude":  config.Latitude,
			"longitude": config.Longitude,
			"planes":    ws.service.Planes(),
		},
		"sun":       sun,
		"forecast":  forecastData,
		"timestamp": now.UTC().Format(time.RFC3339),
	}
}

// Helper functions

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
