package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sitegrid-dev/sitegrid/db"
	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
	"github.com/sitegrid-dev/sitegrid/internal/utils"
	"github.com/sitegrid-dev/sitegrid/internal/ws"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// clientMessage is what connected clients may send: project group membership
// changes and unread-count requests.
type clientMessage struct {
	Type      string `json:"type"`
	ProjectID uint   `json:"project_id"`
}

// WebSocket upgrades the connection, joins it to the caller's per-user group
// and services group membership messages until the connection closes.
func WebSocket(c *gin.Context) {
	user, err := utils.GetCurrentUser(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range types.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Set up connection parameters
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	// Every connection lives in its owner's per-user group.
	hub.Register(user.ID, conn)

	defer func() {
		hub.Unregister(conn)
		conn.Close()

		log.Printf("WebSocket connection closed for user %d", user.ID)
	}()

	// Send welcome message
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Failed to set write deadline for welcome message: %v", err)
		return
	}

	err = conn.WriteJSON(ws.Event{
		Type:    "connected",
		Message: "WebSocket connection established",
	})

	if err != nil {
		log.Printf("Failed to send welcome message: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		// Send pings periodically
		for range ticker.C {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Failed to set write deadline for user %d: %v", user.ID, err)
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Ping failed for user %d: %v", user.ID, err)
				return
			}
		}
	}()

	for {
		// Set read deadline for each message
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline for user %d: %v", user.ID, err)
			break
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for user %d: %v", user.ID, err)
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var request clientMessage

		if err := json.Unmarshal(message, &request); err != nil {
			log.Printf("Invalid websocket message from user %d: %v", user.ID, err)
			continue
		}

		handleClientMessage(conn, user.ID, request)
	}
}

func handleClientMessage(conn *websocket.Conn, userID uint, request clientMessage) {
	switch request.Type {
	case "join_project":
		if !hasProjectAccess(userID, request.ProjectID) {
			return
		}
		hub.JoinProject(conn, request.ProjectID)
	case "leave_project":
		hub.LeaveProject(conn, request.ProjectID)
	case "unread_count":
		summary, err := engine.UnreadSummary(userID)
		if err != nil {
			log.Printf("Failed to compute unread summary for user %d: %v", userID, err)
			return
		}
		if err := conn.WriteJSON(ws.Event{
			Type:        "unread_count",
			UnreadTotal: &summary.Total,
			UnreadByCtx: summary.PerContext,
		}); err != nil {
			log.Printf("Failed to send unread count to user %d: %v", userID, err)
		}
	default:
		log.Printf("Unknown websocket message type %q from user %d", request.Type, userID)
	}
}

func hasProjectAccess(userID, projectID uint) bool {
	var project models.Project

	if err := db.DB.Where("id = ?", projectID).First(&project).Error; err != nil {
		return false
	}

	if project.ManagerID == userID || project.SupervisorID == userID {
		return true
	}

	var count int64

	err := db.DB.Model(&models.ProjectMembership{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error

	return err == nil && count > 0
}
