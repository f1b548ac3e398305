package testhelpers

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestDB_MigratesAllModels(t *testing.T) {
	db := SetupTestDB(t)

	for _, model := range models.AllModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestSeedStudents(t *testing.T) {
	db := SetupTestDB(t)
	SeedStudents(t, db, []string{"s1", "s2"}, "s2")

	var active []models.User
	require.NoError(t, db.Where("is_active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, "s1", active[0].ID)
}

func TestClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	clock.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), clock.Now())
}
