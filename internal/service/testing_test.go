package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/walklog/internal/db"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "-", " ", "-").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	gdb, err := db.Open(dsn, db.WithSilentLogger())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(gdb)
	})
	return gdb
}

func createTestUser(t *testing.T, gdb *gorm.DB, email string) *db.User {
	t.Helper()
	user, err := NewUserService(gdb).Signup(email, "password123", strings.Split(email, "@")[0])
	if err != nil {
		t.Fatalf("signup %s failed: %v", email, err)
	}
	return user
}

// testClock 供 tracker 注入可控时间
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) advanceDays(days int) {
	c.now = c.now.AddDate(0, 0, days)
}
