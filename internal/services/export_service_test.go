package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func scheduleExportBatch(t *testing.T, env *testEnv) *ScheduleResult {
	t.Helper()
	ctx := context.Background()
	testhelpers.SeedStudents(t, env.db, []string{"s1", "s2"})

	result, err := env.manager.Scheduler().Schedule(ctx, &ScheduleRequest{
		AllActiveStudents: true,
		ScheduledAt:       env.clock.Now().Add(time.Minute),
		DurationMinutes:   20,
		InterviewType:     models.InterviewAptitude,
	})
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)

	env.clock.Advance(2 * time.Minute)
	first := result.Sessions[0]
	_, err = env.manager.Monitor().StartInterview(ctx, first.ID, first.SessionToken)
	require.NoError(t, err)
	_, err = env.manager.Monitor().SubmitResponse(ctx, first.ID, first.SessionToken, &SubmitResponseRequest{
		QuestionID: "q1", Category: models.CategoryProblemSolving, Score: 88.5,
	})
	require.NoError(t, err)
	_, err = env.manager.Monitor().CompleteInterview(ctx, first.ID, first.SessionToken)
	require.NoError(t, err)
	return result
}

func TestExportBatch_CSV(t *testing.T) {
	env := newTestEnv(t)
	batch := scheduleExportBatch(t, env)

	data, err := env.manager.Export().ExportBatch(context.Background(), batch.BatchID, ExportFormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeaders, records[0])

	assert.Equal(t, []string{"s1", "aptitude", "completed"}, records[1][1:4])
	assert.Equal(t, "88.50", records[1][7])
	assert.Equal(t, string(models.ScoreStatusScored), records[1][8])

	assert.Equal(t, []string{"s2", "aptitude", "scheduled"}, records[2][1:4])
	assert.Empty(t, records[2][7])
}

func TestExportBatch_Excel(t *testing.T) {
	env := newTestEnv(t)
	batch := scheduleExportBatch(t, env)

	data, err := env.manager.Export().ExportBatch(context.Background(), batch.BatchID, ExportFormatExcel)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Results"}, f.GetSheetList())
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, batch.Sessions[0].ID, rows[1][0])
	assert.Equal(t, "s2", rows[2][1])
}

func TestExportBatch_Errors(t *testing.T) {
	env := newTestEnv(t)
	batch := scheduleExportBatch(t, env)

	_, err := env.manager.Export().ExportBatch(context.Background(), "no-such-batch", ExportFormatCSV)
	assert.ErrorIs(t, err, ErrUnknownBatch)

	_, err = env.manager.Export().ExportBatch(context.Background(), batch.BatchID, "pdf")
	var fieldErrs ValidationErrors
	assert.ErrorAs(t, err, &fieldErrs)
}
