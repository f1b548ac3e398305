package testhelpers

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	openSQLite = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	}
	migrateSchema = func(db *gorm.DB) error { return db.AutoMigrate(models.AllModels()...) }
)

// SetupTestDB creates an isolated in-memory SQLite database for tests.
// A single connection serializes access, so code inside a transaction must only use the tx handle.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := openSQLite(dsn)
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to access test database: %v", err))
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrateSchema(db); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedStudents inserts users with the student role. Ids listed in inactive are stored inactive.
func SeedStudents(t *testing.T, db *gorm.DB, ids []string, inactive ...string) {
	t.Helper()

	disabled := make(map[string]bool, len(inactive))
	for _, id := range inactive {
		disabled[id] = true
	}
	for _, id := range ids {
		user := &models.User{
			ID:       id,
			FullName: "Student " + id,
			Email:    id + "@example.com",
			Role:     models.RoleStudent,
			IsActive: !disabled[id],
		}
		if err := db.Create(user).Error; err != nil {
			panic(fmt.Sprintf("failed to seed student %s: %v", id, err))
		}
	}
}

// Clock is a controllable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
