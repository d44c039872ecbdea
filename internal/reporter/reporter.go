package reporter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/focusmute/focusmute/internal/config"
	"github.com/focusmute/focusmute/internal/models"
)

// Source is the part of the journal repository reports are built from
type Source interface {
	GetAppSummarySince(since time.Time) ([]models.AppSummary, error)
}

// Reporter handles report generation
type Reporter struct {
	config *config.Config
	repo   Source
	now    func() time.Time
}

// New creates a new reporter
func New(cfg *config.Config, repo Source) *Reporter {
	return &Reporter{
		config: cfg,
		repo:   repo,
		now:    time.Now,
	}
}

// GenerateReport summarises mute activity per process for the specified
// period
func (r *Reporter) GenerateReport(periodType string) (*models.Report, error) {
	period, err := r.getPeriod(periodType)
	if err != nil {
		return nil, err
	}

	// Get raw summaries from database (SQL does the SUM)
	summaries, err := r.repo.GetAppSummarySince(period.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to get app summary: %w", err)
	}

	var mutes, unmutes, events int64
	for i := range summaries {
		mutes += summaries[i].MuteCount
		unmutes += summaries[i].UnmuteCount
		events += summaries[i].EventCount
	}

	// Share of all mute commands that hit each process
	if events > 0 {
		for i := range summaries {
			summaries[i].Percentage = (float64(summaries[i].EventCount) / float64(events)) * 100.0
		}
	}

	report := &models.Report{
		Period:       *period,
		Apps:         summaries,
		TotalMutes:   mutes,
		TotalUnmutes: unmutes,
		TotalEvents:  events,
		GeneratedAt:  r.now(),
	}

	return report, nil
}

func (r *Reporter) location() *time.Location {
	if r.config == nil || r.config.Report.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.config.Report.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// getPeriod calculates the time range for the report
func (r *Reporter) getPeriod(periodType string) (*models.ReportPeriod, error) {
	now := r.now().In(r.location())
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 0, 1)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Mute Activity Report - %s\n", report.Period.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Commands: %d (%d mutes, %d unmutes)\n\n",
		report.TotalEvents, report.TotalMutes, report.TotalUnmutes)

	if len(report.Apps) == 0 {
		b.WriteString("No mute activity recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-30s %8s %8s %10s %9s\n", "Process", "Mutes", "Unmutes", "Sessions", "Percent")
	b.WriteString(strings.Repeat("-", 70) + "\n")

	for _, app := range report.Apps {
		fmt.Fprintf(&b, "%-30s %8d %8d %10d %8.1f%%\n",
			truncate(app.ProcessName, 30),
			app.MuteCount,
			app.UnmuteCount,
			app.SessionCount,
			app.Percentage)
	}

	return b.String()
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// truncate shortens s to at most maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
