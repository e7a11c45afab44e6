// Package ws holds the live-connection group registry and the push fan-out
// over it. The registry is process-local shared state: populated on connect,
// pruned on disconnect or write failure. Push events are best-effort mirrors
// of persisted notification state, never a substitute for it.
package ws

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// Conn is the slice of a websocket connection the hub needs. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Event is one push message to a client.
type Event struct {
	Type         string                  `json:"type"`
	Notification *NotificationPayload    `json:"notification,omitempty"`
	UnreadTotal  *int64                  `json:"unread_total,omitempty"`
	UnreadByCtx  map[types.Context]int64 `json:"unread_by_context,omitempty"`
	ReadIDs      []uint                  `json:"read_ids,omitempty"`
	ProjectID    uint                    `json:"project_id,omitempty"`
	Message      string                  `json:"message,omitempty"`
}

// NotificationPayload is the wire shape of a pushed notification.
type NotificationPayload struct {
	ID         uint                   `json:"id"`
	Type       types.NotificationType `json:"type"`
	Context    types.Context          `json:"context"`
	Priority   string                 `json:"priority"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	ActionLink string                 `json:"action_link,omitempty"`
	ActionText string                 `json:"action_text,omitempty"`
	ActionIcon string                 `json:"action_icon,omitempty"`
	ProjectID  *uint                  `json:"project_id,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func payloadFor(n models.Notification) *NotificationPayload {
	return &NotificationPayload{
		ID:         n.ID,
		Type:       n.Type,
		Context:    n.Context,
		Priority:   n.Priority.String(),
		Title:      n.Title,
		Message:    n.Message,
		ActionLink: n.ActionLink,
		ActionText: n.ActionText,
		ActionIcon: n.ActionIcon,
		ProjectID:  n.ProjectID,
		CreatedAt:  n.CreatedAt,
	}
}

// Hub maintains per-user groups plus the per-project groups each connection
// has explicitly joined. All group operations are idempotent: joining a group
// twice neither duplicates the membership nor the events it receives.
type Hub struct {
	mu           sync.RWMutex
	userConns    map[uint]map[Conn]bool
	projectConns map[uint]map[Conn]bool
	connUser     map[Conn]uint
	connProjects map[Conn]map[uint]bool
}

func NewHub() *Hub {
	return &Hub{
		userConns:    make(map[uint]map[Conn]bool),
		projectConns: make(map[uint]map[Conn]bool),
		connUser:     make(map[Conn]uint),
		connProjects: make(map[Conn]map[uint]bool),
	}
}

// Register joins the connection to its owner's per-user group.
func (h *Hub) Register(userID uint, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[Conn]bool)
	}
	h.userConns[userID][conn] = true
	h.connUser[conn] = userID
}

// Unregister removes the connection from every group it belongs to.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn Conn) {
	if userID, ok := h.connUser[conn]; ok {
		delete(h.userConns[userID], conn)
		if len(h.userConns[userID]) == 0 {
			delete(h.userConns, userID)
		}
		delete(h.connUser, conn)
	}

	for projectID := range h.connProjects[conn] {
		delete(h.projectConns[projectID], conn)
		if len(h.projectConns[projectID]) == 0 {
			delete(h.projectConns, projectID)
		}
	}
	delete(h.connProjects, conn)
}

// JoinProject adds the connection to a per-project group.
func (h *Hub) JoinProject(conn Conn, projectID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.projectConns[projectID] == nil {
		h.projectConns[projectID] = make(map[Conn]bool)
	}
	h.projectConns[projectID][conn] = true

	if h.connProjects[conn] == nil {
		h.connProjects[conn] = make(map[uint]bool)
	}
	h.connProjects[conn][projectID] = true
}

// LeaveProject removes the connection from a per-project group.
func (h *Hub) LeaveProject(conn Conn, projectID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.projectConns[projectID], conn)
	if len(h.projectConns[projectID]) == 0 {
		delete(h.projectConns, projectID)
	}
	delete(h.connProjects[conn], projectID)
}

// UserConnections reports how many open connections the user has.
func (h *Hub) UserConnections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.userConns[userID])
}

// ProjectConnections reports how many connections joined the project group.
func (h *Hub) ProjectConnections(projectID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.projectConns[projectID])
}

// PushNotification pushes a freshly created notification to the recipient's
// open sessions.
func (h *Hub) PushNotification(userID uint, notification models.Notification) error {
	h.pushToUser(userID, Event{
		Type:         "notification",
		Notification: payloadFor(notification),
	})
	return nil
}

// PushUnreadCount pushes the recipient's current unread summary.
func (h *Hub) PushUnreadCount(userID uint, total int64, perContext map[types.Context]int64) error {
	h.pushToUser(userID, Event{
		Type:        "unread_count",
		UnreadTotal: &total,
		UnreadByCtx: perContext,
	})
	return nil
}

// PushRead tells every open session of the user that the given notifications
// were marked read, keeping concurrent sessions consistent without polling.
func (h *Hub) PushRead(userID uint, notificationIDs []uint) error {
	h.pushToUser(userID, Event{
		Type:    "marked_read",
		ReadIDs: notificationIDs,
	})
	return nil
}

// PushProject fans an event out to every connection in the project group.
func (h *Hub) PushProject(projectID uint, event Event) {
	event.ProjectID = projectID

	h.mu.RLock()
	conns := make([]Conn, 0, len(h.projectConns[projectID]))
	for conn := range h.projectConns[projectID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	h.write(conns, event)
}

func (h *Hub) pushToUser(userID uint, event Event) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.userConns[userID]))
	for conn := range h.userConns[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	h.write(conns, event)
}

// write sends the event to each connection without holding the registry
// lock; a connection that fails is pruned from every group and closed.
func (h *Hub) write(conns []Conn, event Event) {
	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			logrus.WithError(err).Debug("Dropping websocket connection after failed write")

			h.mu.Lock()
			h.removeLocked(conn)
			h.mu.Unlock()

			conn.Close()
		}
	}
}
