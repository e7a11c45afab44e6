package notifications

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// ListFilters narrows ListForUser results. Nil fields are ignored.
type ListFilters struct {
	Read        *bool
	Context     *types.Context
	MinPriority *types.Priority
	ProjectID   *uint
}

// UnreadCounts is the unread summary: a total plus a per-context breakdown
// computed from the same read-state the list reads.
type UnreadCounts struct {
	Total      int64
	PerContext map[types.Context]int64
}

// ListForUser returns one page of the user's notifications, newest first,
// along with the total row count for the filter.
func (s *Service) ListForUser(userID uint, page, size int, filters ListFilters) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	query := s.conn.Model(&models.Notification{}).Where("user_id = ?", userID)

	if filters.Read != nil {
		query = query.Where("read = ?", *filters.Read)
	}
	if filters.Context != nil {
		query = query.Where("context = ?", *filters.Context)
	}
	if filters.MinPriority != nil {
		query = query.Where("priority >= ?", *filters.MinPriority)
	}
	if filters.ProjectID != nil {
		query = query.Where("project_id = ?", *filters.ProjectID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := query.
		Order("created_at desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&notifications).Error

	return notifications, total, err
}

// UnreadSummary returns the user's unread total with a per-context breakdown.
// Both numbers come from one query so they can never disagree within a
// request.
func (s *Service) UnreadSummary(userID uint) (UnreadCounts, error) {
	type row struct {
		Context types.Context
		Count   int64
	}

	var rows []row

	err := s.conn.Model(&models.Notification{}).
		Select("context, count(*) as count").
		Where("user_id = ? AND read = ?", userID, false).
		Group("context").
		Scan(&rows).Error
	if err != nil {
		return UnreadCounts{}, err
	}

	summary := UnreadCounts{PerContext: make(map[types.Context]int64)}

	for _, r := range rows {
		summary.PerContext[r.Context] = r.Count
		summary.Total += r.Count
	}

	return summary, nil
}

// MarkAsRead marks the given notifications read for the user and returns how
// many actually transitioned. Ids that do not exist, are already read, or
// belong to someone else are silently skipped; the response never reveals
// which was which.
func (s *Service) MarkAsRead(userID uint, notificationIDs []uint) (int64, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}

	// Resolve the ids that will actually transition, so the read receipt
	// pushed to other sessions never carries foreign or already-read ids.
	var eligible []uint

	err := s.conn.Model(&models.Notification{}).
		Where("user_id = ? AND id IN ? AND read = ?", userID, notificationIDs, false).
		Pluck("id", &eligible).Error
	if err != nil {
		return 0, err
	}

	if len(eligible) == 0 {
		return 0, nil
	}

	now := time.Now()

	result := s.conn.Model(&models.Notification{}).
		Where("user_id = ? AND id IN ? AND read = ?", userID, eligible, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		// Keep other open sessions of the same user consistent.
		if err := s.pusher.PushRead(userID, eligible); err != nil {
			logrus.WithError(err).WithField("user", userID).Warn("Failed to push read receipt")
		}
		s.pushUnreadCount(userID)
	}

	return result.RowsAffected, nil
}

// CleanupOlderThan deletes the user-visible notifications created more than
// the given number of days ago, deliveries included via the cascade. Intended
// for the administrative cleanup endpoint.
func (s *Service) CleanupOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	result := s.conn.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&models.Notification{})

	return result.RowsAffected, result.Error
}

// DeliveryStats exposes per-channel delivery outcomes for administrators.
// End users never see delivery failures.
func (s *Service) DeliveryStats() (map[types.Channel]map[types.DeliveryStatus]int64, error) {
	return s.dispatcher.Stats()
}
