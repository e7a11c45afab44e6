package types

import "fmt"

// Context identifies the business module a notification originated from.
type Context string

const (
	ContextIncidents Context = "incidents"
	ContextMaterials Context = "materials"
	ContextMachinery Context = "machinery"
	ContextPersonnel Context = "personnel"
	ContextProjects  Context = "projects"
	ContextSystem    Context = "system"
)

var Contexts = []Context{
	ContextIncidents,
	ContextMaterials,
	ContextMachinery,
	ContextPersonnel,
	ContextProjects,
	ContextSystem,
}

func (c Context) Valid() bool {
	for _, known := range Contexts {
		if c == known {
			return true
		}
	}
	return false
}

// Priority is an ordered severity level used for preference-threshold
// filtering. Higher values outrank lower ones.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// AtLeast reports whether p meets or exceeds the given threshold.
func (p Priority) AtLeast(threshold Priority) bool {
	return p >= threshold
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority converts the wire representation back to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// Channel is a delivery medium for a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

func (c Channel) Valid() bool {
	return c == ChannelInApp || c == ChannelEmail || c == ChannelPush
}

// DeliveryStatus tracks one (notification, channel) delivery through its
// state machine: pending -> sent, or pending -> failed -> pending -> ... ->
// abandoned once the attempt ceiling is reached.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryAbandoned DeliveryStatus = "abandoned"
)

// Terminal reports whether the delivery can never be attempted again.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySent || s == DeliveryAbandoned
}

// Scope describes an abstract audience resolved to concrete user ids at
// creation time.
type Scope string

const (
	ScopeUser         Scope = "user"
	ScopeProjectStaff Scope = "project_staff"
	ScopeRole         Scope = "role"
	ScopeBroadcast    Scope = "broadcast"
)

func (s Scope) Valid() bool {
	return s == ScopeUser || s == ScopeProjectStaff || s == ScopeRole || s == ScopeBroadcast
}

// Role is a user's role class.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
	RoleWorker     Role = "worker"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleSupervisor || r == RoleWorker
}

// NotificationType enumerates the event kinds the business modules emit.
type NotificationType string

const (
	TypeIncidentReported        NotificationType = "incident_reported"
	TypeIncidentResolved        NotificationType = "incident_resolved"
	TypeMachineryMaintenanceDue NotificationType = "machinery_maintenance_due"
	TypeMaterialStockLow        NotificationType = "material_stock_low"
	TypePersonnelAssigned       NotificationType = "personnel_assigned"
	TypeDocumentUploaded        NotificationType = "document_uploaded"
	TypeSystemAnnouncement      NotificationType = "system_announcement"
	TypeCriticalAlert           NotificationType = "critical_alert"
)

var NotificationTypes = []NotificationType{
	TypeIncidentReported,
	TypeIncidentResolved,
	TypeMachineryMaintenanceDue,
	TypeMaterialStockLow,
	TypePersonnelAssigned,
	TypeDocumentUploaded,
	TypeSystemAnnouncement,
	TypeCriticalAlert,
}

func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}
