package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitegrid-dev/sitegrid/db"
	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// newTestDB opens a private in-memory database with the full schema, so the
// uniqueness and claim invariants are enforced by a real engine.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// A single connection keeps every session on the same in-memory
	// database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))

	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, name string, role types.Role, active bool) models.User {
	t.Helper()

	user := models.User{
		Name:         name,
		Email:        name + "@sitegrid.test",
		PasswordHash: "x",
		Role:         string(role),
		Active:       active,
	}
	require.NoError(t, conn.Create(&user).Error)

	return user
}

func seedProject(t *testing.T, conn *gorm.DB, name string, managerID, supervisorID uint) models.Project {
	t.Helper()

	project := models.Project{
		Name:         name,
		ManagerID:    managerID,
		SupervisorID: supervisorID,
	}
	require.NoError(t, conn.Create(&project).Error)

	return project
}

// fakeSender records sends for one channel and fails on demand: always when
// fail is set, or for the first failTimes sends only. A non-nil sendErr
// replaces the generic failure error.
type fakeSender struct {
	mu        sync.Mutex
	channel   types.Channel
	fail      bool
	failTimes int
	sendErr   error
	block     bool
	sends     int
}

func (f *fakeSender) Channel() types.Channel { return f.channel }

func (f *fakeSender) Send(ctx context.Context, notification models.Notification) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sends++
	if f.fail || f.sends <= f.failTimes {
		if f.sendErr != nil {
			return f.sendErr
		}
		return errors.New("provider unavailable")
	}
	return nil
}

func (f *fakeSender) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

// fakePusher records push events.
type fakePusher struct {
	mu            sync.Mutex
	notifications []uint
	unreadPushes  int
	readPushes    [][]uint
}

func (f *fakePusher) PushNotification(userID uint, notification models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, userID)
	return nil
}

func (f *fakePusher) PushUnreadCount(userID uint, total int64, perContext map[types.Context]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreadPushes++
	return nil
}

func (f *fakePusher) PushRead(userID uint, notificationIDs []uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readPushes = append(f.readPushes, notificationIDs)
	return nil
}
