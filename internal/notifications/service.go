// Package notifications is the engine that decides who is told about a
// business event, whether each recipient currently wants to be told, and how
// the telling happens: a persisted in-app record, an email, or a real-time
// push. Delivery is guaranteed to be attempted at most once per
// (notification, channel) pair and retried safely on transient failure.
package notifications

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitegrid-dev/sitegrid/internal/lookup"
	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// CreateRequest describes one business event to fan out.
type CreateRequest struct {
	Audience   Audience
	Type       types.NotificationType
	Context    types.Context
	Priority   types.Priority
	Title      string
	Message    string
	ActionLink string
	ActionText string
	ActionIcon string
	ProjectID  *uint
	EntityID   *uint
	Data       datatypes.JSON
}

// Service is the engine's entry point. Creation runs synchronously in the
// triggering request; email and push delivery happen on the worker pool, so
// callers never observe delivery outcomes.
type Service struct {
	conn       *gorm.DB
	dir        lookup.Directory
	resolver   *Resolver
	prefs      *PreferenceStore
	dispatcher *Dispatcher
	workers    *DeliveryWorkers
	pusher     Pusher
}

func NewService(conn *gorm.DB, dir lookup.Directory, resolver *Resolver, prefs *PreferenceStore, dispatcher *Dispatcher, workers *DeliveryWorkers, pusher Pusher) *Service {
	return &Service{
		conn:       conn,
		dir:        dir,
		resolver:   resolver,
		prefs:      prefs,
		dispatcher: dispatcher,
		workers:    workers,
		pusher:     pusher,
	}
}

// Preferences exposes the preference store for the API layer.
func (s *Service) Preferences() *PreferenceStore {
	return s.prefs
}

// Create validates the request, expands the audience, filters it through the
// recipients' preferences and persists one notification per surviving
// recipient, dispatching deliveries for each. It returns how many
// notifications were created; an audience that resolves to nobody, or is
// entirely filtered out, yields 0 and no error. One recipient's persistence
// failure never rolls back the others.
func (s *Service) Create(request CreateRequest) (int, error) {
	if err := s.validate(&request); err != nil {
		return 0, err
	}

	recipients, err := s.resolver.Resolve(request.Audience)
	if err != nil {
		return 0, err
	}

	created := 0

	for _, userID := range recipients {
		ok, err := s.createForRecipient(userID, request)
		if err != nil {
			// Local to this recipient's fan-out branch.
			logrus.WithError(err).WithFields(logrus.Fields{
				"user": userID,
				"type": request.Type,
			}).Error("Failed to create notification for recipient")
			continue
		}
		if ok {
			created++
		}
	}

	return created, nil
}

func (s *Service) validate(request *CreateRequest) error {
	if request.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if request.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !request.Type.Valid() {
		return fmt.Errorf("%w: unknown notification type %q", ErrValidation, request.Type)
	}
	if !request.Context.Valid() {
		return fmt.Errorf("%w: unknown context %q", ErrValidation, request.Context)
	}
	if !request.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %d", ErrValidation, request.Priority)
	}
	if !request.Audience.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrValidation, request.Audience.Scope)
	}

	if request.ProjectID != nil {
		// System events are never project-scoped; project-scoped events
		// must reference a project that actually exists.
		if request.Context == types.ContextSystem {
			return fmt.Errorf("%w: system context cannot reference a project", ErrValidation)
		}

		project, err := s.dir.ProjectByID(*request.ProjectID)
		if err != nil {
			return err
		}
		if project == nil {
			return fmt.Errorf("%w: project %d", ErrUnknownProject, *request.ProjectID)
		}
	}

	return nil
}

// createForRecipient persists the notification and its deliveries for one
// recipient. Returns false when the recipient's preferences filter the event
// out entirely.
func (s *Service) createForRecipient(userID uint, request CreateRequest) (bool, error) {
	inApp, err := s.prefs.ShouldNotify(userID, request.Context, request.Priority)
	if err != nil {
		return false, err
	}

	email, err := s.prefs.ShouldEmail(userID, request.Context, request.Priority)
	if err != nil {
		return false, err
	}

	if !inApp && !email {
		return false, nil
	}

	notification := models.Notification{
		UserID:     userID,
		Type:       request.Type,
		Context:    request.Context,
		Priority:   request.Priority,
		Title:      request.Title,
		Message:    request.Message,
		ActionLink: request.ActionLink,
		ActionText: request.ActionText,
		ActionIcon: request.ActionIcon,
		Scope:      request.Audience.Scope,
		TargetRole: request.Audience.Role,
		ProjectID:  request.ProjectID,
		EntityID:   request.EntityID,
		Data:       request.Data,
	}

	if err := s.conn.Create(&notification).Error; err != nil {
		return false, err
	}

	var channels []types.Channel
	if inApp {
		// The real-time push mirrors the in-app record.
		channels = append(channels, types.ChannelInApp, types.ChannelPush)
	}
	if email {
		channels = append(channels, types.ChannelEmail)
	}

	deliveries, err := s.dispatcher.Dispatch(notification.ID, channels)
	if err != nil {
		// The notification row exists; delivery state is recoverable by
		// re-dispatch, so the recipient still counts as created.
		logrus.WithError(err).WithField("notification", notification.ID).Error("Failed to dispatch deliveries")
		return true, nil
	}

	for _, delivery := range deliveries {
		if delivery.Channel == types.ChannelInApp {
			if err := s.dispatcher.MarkSent(delivery.ID); err != nil {
				logrus.WithError(err).WithField("delivery", delivery.ID).Error("Failed to mark in-app delivery sent")
			}
			continue
		}
		s.workers.Enqueue(delivery.ID)
	}

	if inApp {
		s.pushUnreadCount(userID)
	}

	return true, nil
}

// pushUnreadCount sends the recipient's fresh unread summary to any open
// sessions, best-effort.
func (s *Service) pushUnreadCount(userID uint) {
	summary, err := s.UnreadSummary(userID)
	if err != nil {
		logrus.WithError(err).WithField("user", userID).Warn("Failed to compute unread summary for push")
		return
	}

	if err := s.pusher.PushUnreadCount(userID, summary.Total, summary.PerContext); err != nil {
		logrus.WithError(err).WithField("user", userID).Warn("Failed to push unread count")
	}
}

// NotifyUser creates a notification addressed to one user.
func (s *Service) NotifyUser(userID uint, request CreateRequest) (int, error) {
	request.Audience = Audience{Scope: types.ScopeUser, UserID: userID}
	return s.Create(request)
}

// NotifyProjectStaff creates a notification for a project's manager and
// supervisor.
func (s *Service) NotifyProjectStaff(projectID uint, request CreateRequest) (int, error) {
	request.Audience = Audience{Scope: types.ScopeProjectStaff, ProjectID: &projectID}
	if request.ProjectID == nil {
		request.ProjectID = &projectID
	}
	return s.Create(request)
}

// NotifyRole creates a notification for a role class, system-wide or
// restricted to users with access to the given project.
func (s *Service) NotifyRole(role types.Role, projectID *uint, request CreateRequest) (int, error) {
	request.Audience = Audience{Scope: types.ScopeRole, Role: role, ProjectID: projectID}
	return s.Create(request)
}

// Broadcast creates a notification for every active user.
func (s *Service) Broadcast(request CreateRequest) (int, error) {
	request.Audience = Audience{Scope: types.ScopeBroadcast}
	return s.Create(request)
}

// CriticalAlert is the critical-priority variant: it forces the alert type
// and Critical priority, which bypasses in-app threshold suppression.
func (s *Service) CriticalAlert(request CreateRequest) (int, error) {
	request.Type = types.TypeCriticalAlert
	request.Priority = types.PriorityCritical
	return s.Create(request)
}
