package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

const (
	// DefaultMaxAttempts is the per-delivery attempt ceiling before a
	// delivery is abandoned.
	DefaultMaxAttempts = 3

	// DefaultSendTimeout bounds one channel send so a hung provider turns
	// into a failed attempt the sweep can retry, not a stuck pending row.
	DefaultSendTimeout = 15 * time.Second
)

// Dispatcher owns the per-(notification, channel) delivery state machine:
// pending -> sent, or pending -> failed -> pending -> ... -> abandoned.
// Row creation is an atomic insert-if-absent against the unique
// (notification_id, channel) index, so re-dispatching is a no-op and
// correctness holds across concurrent workers and restarts.
type Dispatcher struct {
	conn        *gorm.DB
	senders     map[types.Channel]ChannelSender
	maxAttempts int
	sendTimeout time.Duration
}

func NewDispatcher(conn *gorm.DB, senders []ChannelSender) *Dispatcher {
	table := make(map[types.Channel]ChannelSender, len(senders))
	for _, sender := range senders {
		table[sender.Channel()] = sender
	}

	return &Dispatcher{
		conn:        conn,
		senders:     table,
		maxAttempts: DefaultMaxAttempts,
		sendTimeout: DefaultSendTimeout,
	}
}

// WithLimits overrides the attempt ceiling and the per-send timeout.
func (d *Dispatcher) WithLimits(maxAttempts int, sendTimeout time.Duration) *Dispatcher {
	if maxAttempts > 0 {
		d.maxAttempts = maxAttempts
	}
	if sendTimeout > 0 {
		d.sendTimeout = sendTimeout
	}
	return d
}

func (d *Dispatcher) MaxAttempts() int { return d.maxAttempts }

// Dispatch creates delivery rows for the given channels. It returns the rows
// created by this call; rows that already existed are skipped (idempotent
// re-dispatch).
func (d *Dispatcher) Dispatch(notificationID uint, channels []types.Channel) ([]models.NotificationDelivery, error) {
	var created []models.NotificationDelivery

	for _, channel := range channels {
		delivery := models.NotificationDelivery{
			NotificationID: notificationID,
			Channel:        channel,
			Status:         types.DeliveryPending,
		}

		result := d.conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}, {Name: "channel"}},
			DoNothing: true,
		}).Create(&delivery)
		if result.Error != nil {
			return created, result.Error
		}

		if result.RowsAffected == 0 {
			continue
		}

		created = append(created, delivery)
	}

	return created, nil
}

// Attempt runs one send for a pending delivery. The claim is a compare-and-
// swap on (status, attempts), so two workers attempting the same row race on
// the update and exactly one proceeds to the sender; the loser is a no-op.
// The attempt count and timestamp stick regardless of the send outcome.
func (d *Dispatcher) Attempt(ctx context.Context, deliveryID uint) error {
	var delivery models.NotificationDelivery

	err := d.conn.Where("id = ?", deliveryID).First(&delivery).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if delivery.Status != types.DeliveryPending || delivery.Attempts >= d.maxAttempts {
		return nil
	}

	now := time.Now()
	claim := d.conn.Model(&models.NotificationDelivery{}).
		Where("id = ? AND status = ? AND attempts = ?", delivery.ID, types.DeliveryPending, delivery.Attempts).
		Updates(map[string]interface{}{
			"attempts":        delivery.Attempts + 1,
			"last_attempt_at": now,
		})
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil
	}

	attempts := delivery.Attempts + 1

	sender, ok := d.senders[delivery.Channel]
	if !ok {
		return d.conclude(delivery.ID, attempts, errors.New("no sender registered for channel"))
	}

	var notification models.Notification
	if err := d.conn.Where("id = ?", delivery.NotificationID).First(&notification).Error; err != nil {
		return d.conclude(delivery.ID, attempts, err)
	}

	// No store lock is held here; the send may block until the timeout.
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	return d.conclude(delivery.ID, attempts, sender.Send(sendCtx, notification))
}

// conclude records the outcome of an attempt. Success moves the row to sent
// and clears the error; failure moves it to failed, or straight to abandoned
// when the ceiling is reached or the recipient no longer resolves. The status
// guard keeps the transition single-shot even if two conclude calls ever
// race.
func (d *Dispatcher) conclude(deliveryID uint, attempts int, sendErr error) error {
	updates := map[string]interface{}{}

	if sendErr == nil {
		updates["status"] = types.DeliverySent
		updates["last_error"] = ""
	} else {
		status := types.DeliveryFailed
		if attempts >= d.maxAttempts || errors.Is(sendErr, ErrUnknownUser) {
			status = types.DeliveryAbandoned
		}
		updates["status"] = status
		updates["last_error"] = sendErr.Error()

		logrus.WithError(sendErr).WithFields(logrus.Fields{
			"delivery": deliveryID,
			"attempts": attempts,
			"status":   status,
		}).Warn("notification delivery attempt failed")
	}

	return d.conn.Model(&models.NotificationDelivery{}).
		Where("id = ? AND status = ?", deliveryID, types.DeliveryPending).
		Updates(updates).Error
}

// MarkSent transitions a pending delivery straight to sent. Used for the
// in-app channel, which is delivered by the notification row itself.
func (d *Dispatcher) MarkSent(deliveryID uint) error {
	now := time.Now()

	return d.conn.Model(&models.NotificationDelivery{}).
		Where("id = ? AND status = ?", deliveryID, types.DeliveryPending).
		Updates(map[string]interface{}{
			"status":          types.DeliverySent,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": now,
		}).Error
}

// ClaimFailedForRetry atomically moves eligible failed deliveries back to
// pending and returns their ids. Only failed rows below the attempt ceiling
// qualify, and the status swap is the claim: a concurrent sweep sees zero
// affected rows for ids it lost, so running the sweep twice never
// double-sends.
func (d *Dispatcher) ClaimFailedForRetry(limit int) ([]uint, error) {
	var candidates []models.NotificationDelivery

	err := d.conn.
		Where("status = ? AND attempts < ?", types.DeliveryFailed, d.maxAttempts).
		Order("last_attempt_at asc").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var claimed []uint

	for _, delivery := range candidates {
		result := d.conn.Model(&models.NotificationDelivery{}).
			Where("id = ? AND status = ? AND attempts < ?", delivery.ID, types.DeliveryFailed, d.maxAttempts).
			Update("status", types.DeliveryPending)
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		claimed = append(claimed, delivery.ID)
	}

	return claimed, nil
}

// StalePending returns pending deliveries whose last activity is older than
// the cutoff: rows dropped from a full queue or orphaned by a crash mid-send.
// The attempt-time CAS in Attempt keeps re-enqueueing them safe.
func (d *Dispatcher) StalePending(cutoff time.Time, limit int) ([]uint, error) {
	var ids []uint

	err := d.conn.Model(&models.NotificationDelivery{}).
		Where("status = ? AND channel <> ?", types.DeliveryPending, types.ChannelInApp).
		Where("(last_attempt_at IS NULL AND created_at < ?) OR last_attempt_at < ?", cutoff, cutoff).
		Limit(limit).
		Pluck("id", &ids).Error

	return ids, err
}

// Stats aggregates delivery counts by channel and status for the
// administrative delivery-stats endpoint.
func (d *Dispatcher) Stats() (map[types.Channel]map[types.DeliveryStatus]int64, error) {
	type row struct {
		Channel types.Channel
		Status  types.DeliveryStatus
		Count   int64
	}

	var rows []row

	err := d.conn.Model(&models.NotificationDelivery{}).
		Select("channel, status, count(*) as count").
		Group("channel").Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[types.Channel]map[types.DeliveryStatus]int64)

	for _, r := range rows {
		if stats[r.Channel] == nil {
			stats[r.Channel] = make(map[types.DeliveryStatus]int64)
		}
		stats[r.Channel][r.Status] = r.Count
	}

	return stats, nil
}
