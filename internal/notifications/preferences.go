package notifications

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// System defaults applied when a user has no preference row for a context:
// in-app on, email off, anything below normal priority suppressed.
const (
	defaultInAppEnabled = true
	defaultEmailEnabled = false
	defaultMinPriority  = types.PriorityNormal
)

// PreferenceStore owns the per-(user, context) notification preferences.
type PreferenceStore struct {
	conn *gorm.DB
}

func NewPreferenceStore(conn *gorm.DB) *PreferenceStore {
	return &PreferenceStore{conn: conn}
}

// Get returns the preference row for (userID, context), lazily creating it
// with system defaults if absent. The insert uses ON CONFLICT DO NOTHING on
// the (user_id, context) unique index, so concurrent first-time lookups
// create the default row exactly once.
func (s *PreferenceStore) Get(userID uint, context types.Context) (models.NotificationPreference, error) {
	var pref models.NotificationPreference

	err := s.conn.Where("user_id = ? AND context = ?", userID, context).First(&pref).Error
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pref, err
	}

	pref = models.NotificationPreference{
		UserID:       userID,
		Context:      context,
		InAppEnabled: defaultInAppEnabled,
		EmailEnabled: defaultEmailEnabled,
		MinPriority:  defaultMinPriority,
	}

	err = s.conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&pref).Error
	if err != nil {
		return pref, err
	}

	// Re-read so a row created by a concurrent caller wins.
	err = s.conn.Where("user_id = ? AND context = ?", userID, context).First(&pref).Error
	return pref, err
}

// GetAll returns one preference row per context for the user, materializing
// default rows for contexts the user has never been addressed in.
func (s *PreferenceStore) GetAll(userID uint) ([]models.NotificationPreference, error) {
	prefs := make([]models.NotificationPreference, 0, len(types.Contexts))

	for _, context := range types.Contexts {
		pref, err := s.Get(userID, context)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, pref)
	}

	return prefs, nil
}

// Update replaces the user-editable fields of a (user, context) preference.
func (s *PreferenceStore) Update(userID uint, context types.Context, inApp, email bool, minPriority types.Priority) (models.NotificationPreference, error) {
	pref, err := s.Get(userID, context)
	if err != nil {
		return pref, err
	}

	pref.InAppEnabled = inApp
	pref.EmailEnabled = email
	pref.MinPriority = minPriority

	err = s.conn.Save(&pref).Error
	return pref, err
}

// ShouldNotify reports whether an in-app notification of the given priority
// should reach the user in this context. Critical bypasses the minimum
// priority threshold but never a disabled channel.
func (s *PreferenceStore) ShouldNotify(userID uint, context types.Context, priority types.Priority) (bool, error) {
	pref, err := s.Get(userID, context)
	if err != nil {
		return false, err
	}

	if !pref.InAppEnabled {
		return false, nil
	}

	if priority == types.PriorityCritical {
		return true, nil
	}

	return priority.AtLeast(pref.MinPriority), nil
}

// ShouldEmail reports whether an email of the given priority should reach the
// user in this context. The threshold applies to email even for Critical.
func (s *PreferenceStore) ShouldEmail(userID uint, context types.Context, priority types.Priority) (bool, error) {
	pref, err := s.Get(userID, context)
	if err != nil {
		return false, err
	}

	return pref.EmailEnabled && priority.AtLeast(pref.MinPriority), nil
}
