package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

func TestWorkersDeliverEnqueued(t *testing.T) {
	conn := newTestDB(t)
	user := seedUser(t, conn, "delivery-target", types.RoleWorker, true)

	sender := &fakeSender{channel: types.ChannelEmail}
	dispatcher := NewDispatcher(conn, []ChannelSender{sender})
	workers := NewDeliveryWorkers(dispatcher, 2)
	workers.Start()
	defer workers.Stop()

	notification := models.Notification{
		UserID:   user.ID,
		Type:     types.TypeIncidentReported,
		Context:  types.ContextIncidents,
		Priority: types.PriorityHigh,
		Title:    "Scaffold collapse",
		Message:  "Sector 4 scaffold reported down",
		Scope:    types.ScopeUser,
	}
	require.NoError(t, conn.Create(&notification).Error)

	rows, err := dispatcher.Dispatch(notification.ID, []types.Channel{types.ChannelEmail})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, workers.Enqueue(rows[0].ID))

	assert.Eventually(t, func() bool {
		var row models.NotificationDelivery
		if err := conn.First(&row, rows[0].ID).Error; err != nil {
			return false
		}
		return row.Status == types.DeliverySent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweepRequeuesFailedDelivery(t *testing.T) {
	conn := newTestDB(t)
	user := seedUser(t, conn, "sweep-target", types.RoleWorker, true)

	sender := &fakeSender{channel: types.ChannelEmail, failTimes: 1}
	dispatcher := NewDispatcher(conn, []ChannelSender{sender})
	workers := NewDeliveryWorkers(dispatcher, 1)
	workers.Start()
	defer workers.Stop()

	notification := models.Notification{
		UserID:   user.ID,
		Type:     types.TypeMaterialStockLow,
		Context:  types.ContextMaterials,
		Priority: types.PriorityNormal,
		Title:    "Rebar below threshold",
		Message:  "Order more 12mm rebar",
		Scope:    types.ScopeUser,
	}
	require.NoError(t, conn.Create(&notification).Error)

	rows, err := dispatcher.Dispatch(notification.ID, []types.Channel{types.ChannelEmail})
	require.NoError(t, err)
	require.NoError(t, dispatcher.Attempt(context.Background(), rows[0].ID))

	var row models.NotificationDelivery
	require.NoError(t, conn.First(&row, rows[0].ID).Error)
	require.Equal(t, types.DeliveryFailed, row.Status)

	sweeper := NewRetrySweeper(dispatcher, workers)
	sweeper.Sweep()

	assert.Eventually(t, func() bool {
		var after models.NotificationDelivery
		if err := conn.First(&after, rows[0].ID).Error; err != nil {
			return false
		}
		return after.Status == types.DeliverySent
	}, 2*time.Second, 10*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 2, sender.sends)
}
