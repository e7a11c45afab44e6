package handlers

import (
	"github.com/sitegrid-dev/sitegrid/internal/notifications"
	"github.com/sitegrid-dev/sitegrid/internal/ws"
)

// Package-level collaborators, wired once at startup.
var (
	engine *notifications.Service
	hub    *ws.Hub
)

// Setup injects the notification engine and the live push hub. Must be
// called before the router starts serving.
func Setup(service *notifications.Service, pushHub *ws.Hub) {
	engine = service
	hub = pushHub
}
