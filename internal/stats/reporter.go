package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"
)

const defaultReportTemplate = `Stats for {{.Title}} by user:
{{range .Stats}}@{{.Username}} has sent {{.MessageCount}} messages, with an average length of {{.AvgLength}}, a friendship rating of {{printf "%.2f" .FRR}} and an average response time of {{.AvgResponseTime}}s.
{{end}}Total messages sent {{.Total}}.`

// DefaultTemplate is the built-in report layout.
var DefaultTemplate = template.Must(template.New("report").Parse(defaultReportTemplate))

// ReportData is the value passed to report templates.
type ReportData struct {
	Title string
	Stats []UserGroupStat
	Total int64
}

// Reporter renders per-group leaderboards.
type Reporter struct {
	store  Store
	sender Sender
	tmpl   *template.Template
	logger *slog.Logger
}

// NewReporter creates a Reporter. A nil tmpl selects DefaultTemplate.
func NewReporter(store Store, sender Sender, tmpl *template.Template, logger *slog.Logger) *Reporter {
	if tmpl == nil {
		tmpl = DefaultTemplate
	}
	return &Reporter{store: store, sender: sender, tmpl: tmpl, logger: logger}
}

// Report renders the leaderboard for groupID.
func (r *Reporter) Report(ctx context.Context, groupID int64, groupTitle string) (string, error) {
	stats, err := r.store.ListByGroup(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("stats: list group %d: %w", groupID, err)
	}
	SortStats(stats)

	data := ReportData{Title: groupTitle, Stats: stats, Total: TotalMessages(stats)}
	var b strings.Builder
	if err := r.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("stats: render report: %w", err)
	}
	return b.String(), nil
}

// Send renders the leaderboard for groupID and delivers it to the group.
func (r *Reporter) Send(ctx context.Context, groupID int64, groupTitle string) error {
	text, err := r.Report(ctx, groupID, groupTitle)
	if err != nil {
		return err
	}
	if err := r.sender.SendMessageTo(ctx, groupID, text); err != nil {
		return fmt.Errorf("stats: send report: %w", err)
	}
	r.logger.Info("sent stats", "group", groupTitle, "group_id", groupID)
	return nil
}

// SortStats orders stats by message count, then average message length,
// both descending.
func SortStats(stats []UserGroupStat) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].MessageCount != stats[j].MessageCount {
			return stats[i].MessageCount > stats[j].MessageCount
		}
		return stats[i].AvgLength() > stats[j].AvgLength()
	})
}

// TotalMessages sums MessageCount across stats.
func TotalMessages(stats []UserGroupStat) int64 {
	var total int64
	for _, s := range stats {
		total += s.MessageCount
	}
	return total
}
