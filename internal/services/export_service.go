package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{
	"Session ID", "Student ID", "Interview Type", "Status", "Scheduled At",
	"Tab Switches", "Warnings", "Final Score", "Score Status",
}

type exportService struct {
	repo   repositories.Repository
	logger *ServiceLogger
}

func NewExportService(repo repositories.Repository, logger *ServiceLogger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

func (s *exportService) ExportBatch(ctx context.Context, batchID string, format ExportFormat) (data []byte, err error) {
	op := s.logger.WithOperation(ctx, "export_batch", "")
	defer func() { op.LogResult(err) }()

	rows, err := s.batchRows(ctx, batchID)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatCSV:
		return writeCSV(rows)
	case ExportFormatExcel, "":
		return writeExcel(rows)
	}
	return nil, ValidationErrors{*NewValidationError("format", "must be one of xlsx csv", format)}
}

func (s *exportService) batchRows(ctx context.Context, batchID string) ([]models.BatchExportRow, error) {
	sessions, err := s.repo.Sessions().GetByBatch(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, ErrUnknownBatch
	}

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	breakdowns, err := s.repo.Scores().GetBySessions(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch results: %w", err)
	}

	rows := make([]models.BatchExportRow, 0, len(sessions))
	for _, session := range sessions {
		row := models.BatchExportRow{
			SessionID:      session.ID,
			StudentID:      session.StudentID,
			InterviewType:  session.InterviewType,
			Status:         session.Status,
			ScheduledAt:    session.ScheduledAt,
			TabSwitchCount: session.TabSwitchCount,
			WarningCount:   session.WarningCount,
		}
		if breakdown, ok := breakdowns[session.ID]; ok {
			status := breakdown.ScoreStatus
			row.ScoreStatus = &status
			if !breakdown.IsVoid() {
				row.FinalScore = models.Float64Ptr(breakdown.SessionScore)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func exportRecord(row models.BatchExportRow) []string {
	finalScore, scoreStatus := "", ""
	if row.FinalScore != nil {
		finalScore = strconv.FormatFloat(*row.FinalScore, 'f', 2, 64)
	}
	if row.ScoreStatus != nil {
		scoreStatus = string(*row.ScoreStatus)
	}
	return []string{
		row.SessionID,
		row.StudentID,
		string(row.InterviewType),
		string(row.Status),
		row.ScheduledAt.UTC().Format(time.RFC3339),
		strconv.Itoa(row.TabSwitchCount),
		strconv.Itoa(row.WarningCount),
		finalScore,
		scoreStatus,
	}
}

func writeExcel(rows []models.BatchExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, row := range rows {
		values := []interface{}{
			row.SessionID,
			row.StudentID,
			string(row.InterviewType),
			string(row.Status),
			row.ScheduledAt.UTC().Format("2006-01-02 15:04:05"),
			row.TabSwitchCount,
			row.WarningCount,
		}
		if row.FinalScore != nil {
			values = append(values, *row.FinalScore)
		} else {
			values = append(values, "")
		}
		if row.ScoreStatus != nil {
			values = append(values, string(*row.ScoreStatus))
		} else {
			values = append(values, "")
		}

		for colIndex, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSV(rows []models.BatchExportRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(exportRecord(row)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
