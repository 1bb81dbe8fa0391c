// handlers/usage_handlers.go
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"p9e.in/fixflow/config"
	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

func usageMonth(r *http.Request) string {
	if m := r.URL.Query().Get("month"); m != "" {
		return m
	}
	return models.MonthKey(time.Now())
}

// GetUsageSummary returns the caller organization's quota standing for one
// month (current month by default).
func GetUsageSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	if actor.Role != authz.RoleClientController && actor.Role != authz.RoleProviderAdmin &&
		actor.Role != authz.RoleSiteAdmin {
		http.Error(w, "role may not view usage", http.StatusForbidden)
		return
	}

	ledger := NewUsageLedger(config.DB)
	statuses, err := ledger.MonthlyUsage(actor.ParticipantID, usageMonth(r))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// ExportUsageStatement writes the organization's usage statement for a month
// as an Excel download: quota standing on top, then each job touched that
// month with its current status.
func ExportUsageStatement(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	if actor.Role != authz.RoleClientController && actor.Role != authz.RoleProviderAdmin &&
		actor.Role != authz.RoleSiteAdmin {
		http.Error(w, "role may not export usage", http.StatusForbidden)
		return
	}

	month := usageMonth(r)
	monthStart, err := time.Parse("2006-01", month)
	if err != nil {
		http.Error(w, "invalid month, expected YYYY-MM", http.StatusBadRequest)
		return
	}
	monthEnd := monthStart.AddDate(0, 1, 0)

	ledger := NewUsageLedger(config.DB)
	statuses, err := ledger.MonthlyUsage(actor.ParticipantID, month)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	q := config.DB.Model(&models.Job{}).
		Where("created_at >= ? AND created_at < ?", monthStart, monthEnd)
	if actor.IsProviderSide() {
		q = q.Where("provider_id = ?", actor.ParticipantID)
	} else {
		q = q.Where("client_id = ?", actor.ParticipantID)
	}
	var jobs []models.Job
	if err := q.Order("created_at ASC").Find(&jobs).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	f := excelize.NewFile()
	sheetName := "Usage"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "failed to generate Excel file", http.StatusInternalServerError)
		return
	}
	f.SetActiveSheet(index)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	})
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Usage statement %s", month))
	f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
	f.SetCellValue(sheetName, "A2", fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
	})

	// Quota section
	row := 4
	for col, h := range []string{"Usage type", "Used", "Limit"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	row++
	for _, s := range statuses {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), string(s.UsageType))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), s.Used)
		if s.Limit != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), *s.Limit)
		} else {
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), "unlimited")
		}
		row++
	}

	// Job section
	row += 2
	for col, h := range []string{"Job", "Status", "Fault", "Created"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	row++
	for _, job := range jobs {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), job.ID.String())
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), string(job.Status))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), job.FaultDescription)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), job.CreatedAt.Format("2006-01-02"))
		row++
	}
	f.SetColWidth(sheetName, "A", "A", 38)
	f.SetColWidth(sheetName, "B", "D", 20)
	f.DeleteSheet("Sheet1")

	buffer, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "failed to write Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("usage_%s.xlsx", month)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buffer.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}
