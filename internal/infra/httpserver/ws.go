package httpserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halcyonlabs/sentinel/internal/middleware"
	"github.com/halcyonlabs/sentinel/internal/notification"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	wsWriteTimeout    = 10 * time.Second
)

// inboundMessage is what subscribers send over the channel.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// wsConn serializes writes; gorilla connections allow one writer at a time
// and both the read loop and the hub forwarder push frames.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(msg notification.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

// GET /v1/channel — the persistent bidirectional notification channel.
// Inbound threat_alert messages trigger a synchronous analysis; inbound
// research_status messages return a task snapshot; research transitions
// are pushed as they happen. Unknown message types get an explicit error
// envelope, never a silent drop.
func (r *Router) handleChannel(w http.ResponseWriter, req *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(req *http.Request) bool {
			return originAllowed(req, r.allowedOrigins)
		},
	}
	raw, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: ip=%s err=%v", req.RemoteAddr, err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	// Forward research status transitions to this subscriber.
	updates, cancel := r.hub.Subscribe(0)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case msg, ok := <-updates:
				if !ok {
					return
				}
				if err := conn.write(msg); err != nil {
					return
				}
			}
		}
	}()

	// Tagged-variant dispatch: message type -> handler.
	key := middleware.ClientKey(req.RemoteAddr)
	handlers := map[string]func(json.RawMessage) notification.Message{
		"threat_alert":    func(p json.RawMessage) notification.Message { return r.wsThreatAlert(req, key, p) },
		"research_status": r.wsResearchStatus,
	}

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			return
		}
		handler, ok := handlers[msg.Type]
		if !ok {
			_ = conn.write(wsError(fmt.Sprintf("unknown message type: %s", msg.Type)))
			continue
		}
		if err := conn.write(handler(msg.Payload)); err != nil {
			return
		}
	}
}

func (r *Router) wsThreatAlert(req *http.Request, key string, payload json.RawMessage) notification.Message {
	var body struct {
		Content  string `json:"content"`
		Severity string `json:"severity"`
		Source   string `json:"source"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return wsError("invalid threat_alert payload: " + err.Error())
	}
	if err := middleware.ValidateContent(body.Content); err != nil {
		return wsError(err.Error())
	}
	severity, err := middleware.ValidateSeverity(body.Severity)
	if err != nil {
		return wsError(err.Error())
	}

	// Channel traffic bypasses the HTTP middleware chain, so the guard is
	// consumed explicitly here.
	if allowed, retryAfter := r.guard.Consume(key, 1); !allowed {
		return notification.Message{Type: "error", Data: map[string]any{
			"message":     "rate limit exceeded",
			"retry_after": retryAfter,
		}}
	}

	report, err := r.consensusSvc.Analyze(req.Context(), body.Content, severity, middleware.SanitizeString(body.Source))
	if err != nil {
		return wsError(err.Error())
	}
	countAnalysis(report)
	return notification.Message{Type: "threat_analysis", Data: report}
}

func (r *Router) wsResearchStatus(payload json.RawMessage) notification.Message {
	var body struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return wsError("invalid research_status payload: " + err.Error())
	}
	task, ok := r.researchSvc.Get(body.TaskID)
	if !ok {
		return wsError("unknown task: " + body.TaskID)
	}
	return notification.Message{Type: "research_update", Data: task}
}

func wsError(message string) notification.Message {
	return notification.Message{Type: "error", Data: map[string]any{"message": message}}
}

func originAllowed(req *http.Request, allowed []string) bool {
	origin := req.Header.Get("Origin")
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}
