package notifications

import (
	"context"
	"fmt"

	"github.com/sitegrid-dev/sitegrid/internal/lookup"
	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/services"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// ChannelSender performs the transmission for one delivery medium. Senders
// must be safe for concurrent use; errors they return are treated as
// transient and drive the retry path.
type ChannelSender interface {
	Channel() types.Channel
	Send(ctx context.Context, notification models.Notification) error
}

// Pusher is the slice of the live push gateway the engine depends on:
// best-effort real-time events mirroring the persisted state.
type Pusher interface {
	PushNotification(userID uint, notification models.Notification) error
	PushUnreadCount(userID uint, total int64, perContext map[types.Context]int64) error
	PushRead(userID uint, notificationIDs []uint) error
}

// InAppSender is a no-op: the persisted notification row is the in-app
// delivery, so it counts as sent as soon as the row exists.
type InAppSender struct{}

func (InAppSender) Channel() types.Channel { return types.ChannelInApp }

func (InAppSender) Send(ctx context.Context, notification models.Notification) error {
	return nil
}

// EmailSender sends the notification over the external email contract,
// resolving the recipient address through the directory.
type EmailSender struct {
	dir    lookup.Directory
	mailer services.EmailSender
}

func NewEmailSender(dir lookup.Directory, mailer services.EmailSender) *EmailSender {
	return &EmailSender{dir: dir, mailer: mailer}
}

func (s *EmailSender) Channel() types.Channel { return types.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, notification models.Notification) error {
	user, err := s.dir.UserByID(notification.UserID)
	if err != nil {
		return err
	}

	if user == nil || user.Email == "" {
		return fmt.Errorf("%w: no email address for user %d", ErrUnknownUser, notification.UserID)
	}

	body := notification.Message
	if notification.ActionLink != "" {
		body = fmt.Sprintf("%s\n\n%s: %s", body, notification.ActionText, notification.ActionLink)
	}

	err = s.mailer.SendEmail(ctx, services.SendEmailParams{
		SendTo:  user.Email,
		Subject: fmt.Sprintf("[%s] %s", notification.Priority, notification.Title),
		Body:    body,
		Tag:     string(notification.Type),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientDelivery, err)
	}

	return nil
}

// PushSender forwards the notification to the live push gateway. Delivery is
// fire-and-forget: a recipient with no open connection is still a success,
// because the persisted in-app row remains the source of truth on reconnect.
type PushSender struct {
	pusher Pusher
}

func NewPushSender(pusher Pusher) *PushSender {
	return &PushSender{pusher: pusher}
}

func (s *PushSender) Channel() types.Channel { return types.ChannelPush }

func (s *PushSender) Send(ctx context.Context, notification models.Notification) error {
	return s.pusher.PushNotification(notification.UserID, notification)
}
