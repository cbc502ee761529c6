package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/models"
	"taskhub/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development - customize for production
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

// HandleWebSocket handles GET /ws, the realtime push channel.
// Protocol:
//  1. Client sends: $AUTH <jwt-token>
//  2. Server subscribes the connection to role:<role> and role:any
//  3. Client sends "SUB task:<id>" / "UNSUB task:<id>" to follow tasks
//  4. Server pushes one JSON notification per task event
//
// Delivery is at-least-once and unordered across channels; clients
// reconcile through the mirror, refetching on sequence gaps.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WEBSOCKET] Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	claims, err := h.authenticateSocket(conn)
	if err != nil {
		log.Printf("[WEBSOCKET] Authentication failed: %v", err)
		conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("ERROR: %v", err)))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("AUTH_SUCCESS")); err != nil {
		return
	}
	log.Printf("[WEBSOCKET] Session authenticated: user=%s role=%s", claims.UserID, claims.Role)

	sub := h.hub.Subscribe(models.RoleTopic(claims.Role), models.RoleTopic(""))
	defer sub.Close()

	conn.SetPingHandler(func(appData string) error {
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return err
		}
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeDeadline))
	})
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return
	}

	// Reader: subscription commands only. Writer: the loop below.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[WEBSOCKET] Read error: user=%s err=%v", claims.UserID, err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			h.handleSocketCommand(sub, claims, strings.TrimSpace(string(message)))
			conn.SetReadDeadline(time.Now().Add(readDeadline))
		}
	}()

	for {
		select {
		case <-done:
			return
		case notification, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(notification); err != nil {
				log.Printf("[WEBSOCKET] Write failed: user=%s err=%v", claims.UserID, err)
				return
			}
		}
	}
}

// authenticateSocket waits for and validates the $AUTH message
func (h *Handlers) authenticateSocket(conn *websocket.Conn) (*models.Claims, error) {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	messageType, message, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read auth message: %w", err)
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("expected text message for authentication")
	}

	msg := strings.TrimSpace(string(message))
	if !strings.HasPrefix(msg, "$AUTH ") {
		return nil, fmt.Errorf("first message must be $AUTH <token>")
	}
	token := strings.TrimSpace(strings.TrimPrefix(msg, "$AUTH "))
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// handleSocketCommand applies one SUB/UNSUB command to the subscription.
// Task channels are open to any authenticated observer; role channels other
// than the caller's own are not subscribable.
func (h *Handlers) handleSocketCommand(sub *realtime.Subscription, claims *models.Claims, command string) {
	fields := strings.Fields(command)
	if len(fields) != 2 {
		return
	}
	verb, topic := fields[0], fields[1]
	if !strings.HasPrefix(topic, "task:") && topic != models.RoleTopic(claims.Role) && topic != models.RoleTopic("") {
		log.Printf("[WEBSOCKET] Refusing subscription to %s for user=%s", topic, claims.UserID)
		return
	}
	switch verb {
	case "SUB":
		h.hub.Add(sub, topic)
	case "UNSUB":
		h.hub.Remove(sub, topic)
	}
}
