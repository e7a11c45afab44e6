package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sitegrid-dev/sitegrid/internal/lookup"
	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

type serviceFixture struct {
	conn    *gorm.DB
	service *Service
	pusher  *fakePusher
	email   *fakeSender
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	conn := newTestDB(t)
	dir := lookup.NewGormDirectory(conn)
	pusher := &fakePusher{}
	email := &fakeSender{channel: types.ChannelEmail}

	dispatcher := NewDispatcher(conn, []ChannelSender{
		InAppSender{},
		email,
		NewPushSender(pusher),
	})

	// Workers are never started: enqueued deliveries stay pending, which
	// keeps assertions on delivery rows deterministic.
	workers := NewDeliveryWorkers(dispatcher, 1)

	service := NewService(conn, dir, NewResolver(dir), NewPreferenceStore(conn), dispatcher, workers, pusher)

	return &serviceFixture{conn: conn, service: service, pusher: pusher, email: email}
}

func incidentRequest() CreateRequest {
	return CreateRequest{
		Type:     types.TypeIncidentReported,
		Context:  types.ContextIncidents,
		Priority: types.PriorityHigh,
		Title:    "Crane hydraulic failure",
		Message:  "Crane 7 reported a hydraulic pressure drop",
	}
}

func (f *serviceFixture) deliveriesFor(t *testing.T, userID uint) []models.NotificationDelivery {
	t.Helper()

	var deliveries []models.NotificationDelivery
	err := f.conn.
		Joins("JOIN notifications ON notifications.id = notification_deliveries.notification_id").
		Where("notifications.user_id = ?", userID).
		Find(&deliveries).Error
	require.NoError(t, err)

	return deliveries
}

func TestCreateForSingleUser(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	created, err := f.service.NotifyUser(user.ID, incidentRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	var notification models.Notification
	require.NoError(t, f.conn.Where("user_id = ?", user.ID).First(&notification).Error)
	assert.Equal(t, types.TypeIncidentReported, notification.Type)
	assert.False(t, notification.Read)

	deliveries := f.deliveriesFor(t, user.ID)
	byChannel := make(map[types.Channel]types.DeliveryStatus)
	for _, delivery := range deliveries {
		byChannel[delivery.Channel] = delivery.Status
	}

	// In-app is sent the moment the row exists; push waits for a worker;
	// email is absent because the default preference keeps it off.
	assert.Equal(t, types.DeliverySent, byChannel[types.ChannelInApp])
	assert.Equal(t, types.DeliveryPending, byChannel[types.ChannelPush])
	assert.NotContains(t, byChannel, types.ChannelEmail)
}

func TestCreateForProjectStaff(t *testing.T) {
	f := newServiceFixture(t)
	manager := seedUser(t, f.conn, "mira", types.RoleManager, true)
	supervisor := seedUser(t, f.conn, "sol", types.RoleSupervisor, true)
	bystander := seedUser(t, f.conn, "zed", types.RoleWorker, true)
	project := seedProject(t, f.conn, "North Yard", manager.ID, supervisor.ID)

	request := incidentRequest()
	created, err := f.service.NotifyProjectStaff(project.ID, request)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	var userIDs []uint
	require.NoError(t, f.conn.Model(&models.Notification{}).Pluck("user_id", &userIDs).Error)
	assert.ElementsMatch(t, []uint{manager.ID, supervisor.ID}, userIDs)
	assert.NotContains(t, userIDs, bystander.ID)
}

func TestCreateForRoleClassSkipsInactive(t *testing.T) {
	f := newServiceFixture(t)
	seedUser(t, f.conn, "adm1", types.RoleAdmin, true)
	seedUser(t, f.conn, "adm2", types.RoleAdmin, true)
	seedUser(t, f.conn, "adm3", types.RoleAdmin, false)

	request := incidentRequest()
	created, err := f.service.CriticalAlert(CreateRequest{
		Audience: Audience{Scope: types.ScopeRole, Role: types.RoleAdmin},
		Context:  request.Context,
		Title:    request.Title,
		Message:  request.Message,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestCreateEmptyAudienceIsNoOp(t *testing.T) {
	f := newServiceFixture(t)

	request := incidentRequest()
	created, err := f.service.NotifyRole(types.RoleSupervisor, nil, request)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestCreateUnknownProjectFails(t *testing.T) {
	f := newServiceFixture(t)
	seedUser(t, f.conn, "ana", types.RoleWorker, true)

	_, err := f.service.NotifyProjectStaff(9999, incidentRequest())
	assert.ErrorIs(t, err, ErrUnknownProject)
}

func TestCreateValidation(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"empty title", func(r *CreateRequest) { r.Title = "" }},
		{"empty message", func(r *CreateRequest) { r.Message = "" }},
		{"bad type", func(r *CreateRequest) { r.Type = "party_invitation" }},
		{"bad context", func(r *CreateRequest) { r.Context = "lunchroom" }},
		{"bad priority", func(r *CreateRequest) { r.Priority = 42 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := incidentRequest()
			tc.mutate(&request)

			_, err := f.service.NotifyUser(user.ID, request)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateSystemContextRejectsProjectReference(t *testing.T) {
	f := newServiceFixture(t)
	manager := seedUser(t, f.conn, "mira", types.RoleManager, true)
	supervisor := seedUser(t, f.conn, "sol", types.RoleSupervisor, true)
	project := seedProject(t, f.conn, "North Yard", manager.ID, supervisor.ID)

	request := incidentRequest()
	request.Context = types.ContextSystem
	request.Type = types.TypeSystemAnnouncement
	request.ProjectID = &project.ID

	_, err := f.service.NotifyUser(manager.ID, request)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateSuppressedByThreshold(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	_, err := f.service.Preferences().Update(user.ID, types.ContextIncidents, true, false, types.PriorityCritical)
	require.NoError(t, err)

	request := incidentRequest() // high priority
	created, err := f.service.NotifyUser(user.ID, request)
	require.NoError(t, err)
	assert.Zero(t, created, "below-threshold events create nothing")

	var count int64
	require.NoError(t, f.conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateCriticalBypassesThreshold(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	_, err := f.service.Preferences().Update(user.ID, types.ContextIncidents, true, false, types.PriorityCritical)
	require.NoError(t, err)

	request := incidentRequest()
	created, err := f.service.CriticalAlert(CreateRequest{
		Audience: Audience{Scope: types.ScopeUser, UserID: user.ID},
		Context:  request.Context,
		Title:    request.Title,
		Message:  request.Message,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestCreateEmailOnlyRecipientStillGetsNotificationRow(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	_, err := f.service.Preferences().Update(user.ID, types.ContextIncidents, false, true, types.PriorityNormal)
	require.NoError(t, err)

	created, err := f.service.NotifyUser(user.ID, incidentRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	deliveries := f.deliveriesFor(t, user.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, types.ChannelEmail, deliveries[0].Channel)
	assert.Equal(t, types.DeliveryPending, deliveries[0].Status)
}

func TestMarkAsReadIgnoresForeignIDs(t *testing.T) {
	f := newServiceFixture(t)
	owner := seedUser(t, f.conn, "ana", types.RoleWorker, true)
	other := seedUser(t, f.conn, "bob", types.RoleWorker, true)

	_, err := f.service.NotifyUser(owner.ID, incidentRequest())
	require.NoError(t, err)
	_, err = f.service.NotifyUser(other.ID, incidentRequest())
	require.NoError(t, err)

	var owned, foreign models.Notification
	require.NoError(t, f.conn.Where("user_id = ?", owner.ID).First(&owned).Error)
	require.NoError(t, f.conn.Where("user_id = ?", other.ID).First(&foreign).Error)

	before, err := f.service.UnreadSummary(owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, before.Total)

	updated, err := f.service.MarkAsRead(owner.ID, []uint{owned.ID, foreign.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated, "the foreign id must be a silent no-op")

	// The read receipt carries only the id that transitioned.
	require.Len(t, f.pusher.readPushes, 1)
	assert.Equal(t, []uint{owned.ID}, f.pusher.readPushes[0])

	after, err := f.service.UnreadSummary(owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, after.Total)

	otherSummary, err := f.service.UnreadSummary(other.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, otherSummary.Total, "the other user's read state is untouched")
}

func TestUnreadSummaryBreakdownMatchesList(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	_, err := f.service.NotifyUser(user.ID, incidentRequest())
	require.NoError(t, err)

	materials := incidentRequest()
	materials.Context = types.ContextMaterials
	materials.Type = types.TypeMaterialStockLow
	_, err = f.service.NotifyUser(user.ID, materials)
	require.NoError(t, err)

	summary, err := f.service.UnreadSummary(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Total)
	assert.EqualValues(t, 1, summary.PerContext[types.ContextIncidents])
	assert.EqualValues(t, 1, summary.PerContext[types.ContextMaterials])

	unread := false
	list, total, err := f.service.ListForUser(user.ID, 1, 10, ListFilters{Read: &unread})
	require.NoError(t, err)
	assert.EqualValues(t, summary.Total, total)
	assert.Len(t, list, 2)
}

func TestListForUserFilters(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	low := incidentRequest()
	low.Priority = types.PriorityNormal
	_, err := f.service.NotifyUser(user.ID, low)
	require.NoError(t, err)

	high := incidentRequest()
	high.Priority = types.PriorityCritical
	high.Type = types.TypeCriticalAlert
	_, err = f.service.NotifyUser(user.ID, high)
	require.NoError(t, err)

	minPriority := types.PriorityHigh
	list, total, err := f.service.ListForUser(user.ID, 1, 10, ListFilters{MinPriority: &minPriority})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, types.PriorityCritical, list[0].Priority)
}

func TestCleanupOlderThanRemovesOldRows(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	_, err := f.service.NotifyUser(user.ID, incidentRequest())
	require.NoError(t, err)

	// Age the row beyond the cutoff.
	require.NoError(t, f.conn.Model(&models.Notification{}).
		Where("user_id = ?", user.ID).
		Update("created_at", gorm.Expr("datetime('now', '-100 days')")).Error)

	deleted, err := f.service.CleanupOlderThan(90)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var count int64
	require.NoError(t, f.conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreatePushesUnreadCount(t *testing.T) {
	f := newServiceFixture(t)
	user := seedUser(t, f.conn, "ana", types.RoleWorker, true)

	_, err := f.service.NotifyUser(user.ID, incidentRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, f.pusher.unreadPushes)
}
