package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

func TestGetCreatesDefaultRowExactlyOnce(t *testing.T) {
	conn := newTestDB(t)
	store := NewPreferenceStore(conn)
	user := seedUser(t, conn, "dana", types.RoleWorker, true)

	first, err := store.Get(user.ID, types.ContextIncidents)
	require.NoError(t, err)
	assert.True(t, first.InAppEnabled)
	assert.False(t, first.EmailEnabled)
	assert.Equal(t, types.PriorityNormal, first.MinPriority)

	second, err := store.Get(user.ID, types.ContextIncidents)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.NotificationPreference{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestShouldNotifyThreshold(t *testing.T) {
	conn := newTestDB(t)
	store := NewPreferenceStore(conn)
	user := seedUser(t, conn, "omar", types.RoleWorker, true)

	_, err := store.Update(user.ID, types.ContextMachinery, true, false, types.PriorityHigh)
	require.NoError(t, err)

	ok, err := store.ShouldNotify(user.ID, types.ContextMachinery, types.PriorityNormal)
	require.NoError(t, err)
	assert.False(t, ok, "below threshold must be suppressed")

	ok, err = store.ShouldNotify(user.ID, types.ContextMachinery, types.PriorityHigh)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldNotifyCriticalBypassesThreshold(t *testing.T) {
	conn := newTestDB(t)
	store := NewPreferenceStore(conn)
	user := seedUser(t, conn, "ines", types.RoleWorker, true)

	_, err := store.Update(user.ID, types.ContextIncidents, true, false, types.PriorityCritical)
	require.NoError(t, err)

	ok, err := store.ShouldNotify(user.ID, types.ContextIncidents, types.PriorityCritical)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldNotifyDisabledChannelSilencesCritical(t *testing.T) {
	conn := newTestDB(t)
	store := NewPreferenceStore(conn)
	user := seedUser(t, conn, "pavel", types.RoleWorker, true)

	_, err := store.Update(user.ID, types.ContextIncidents, false, false, types.PriorityLow)
	require.NoError(t, err)

	ok, err := store.ShouldNotify(user.ID, types.ContextIncidents, types.PriorityCritical)
	require.NoError(t, err)
	assert.False(t, ok, "the explicit channel-enabled flag gates even critical")
}

func TestShouldEmailDefaultsOff(t *testing.T) {
	conn := newTestDB(t)
	store := NewPreferenceStore(conn)
	user := seedUser(t, conn, "rita", types.RoleWorker, true)

	ok, err := store.ShouldEmail(user.ID, types.ContextMaterials, types.PriorityHigh)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldEmailThresholdAppliesToCritical(t *testing.T) {
	conn := newTestDB(t)
	store := NewPreferenceStore(conn)
	user := seedUser(t, conn, "sven", types.RoleWorker, true)

	_, err := store.Update(user.ID, types.ContextIncidents, true, true, types.PriorityNormal)
	require.NoError(t, err)

	ok, err := store.ShouldEmail(user.ID, types.ContextIncidents, types.PriorityCritical)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ShouldEmail(user.ID, types.ContextIncidents, types.PriorityLow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAllMaterializesEveryContext(t *testing.T) {
	conn := newTestDB(t)
	store := NewPreferenceStore(conn)
	user := seedUser(t, conn, "tess", types.RoleWorker, true)

	prefs, err := store.GetAll(user.ID)
	require.NoError(t, err)
	assert.Len(t, prefs, len(types.Contexts))
}
