// Package report summarizes stored session journals.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gorm.io/gorm"

	"github.com/livepid/tracker/internal/model"
	"github.com/livepid/tracker/pkg/core"
)

// SessionReport counts the outcomes of one session.
type SessionReport struct {
	ID           uint
	Name         string
	StartTime    time.Time
	EndTime      *time.Time
	Total        int
	OnPid        int
	OffPid       int
	Inconclusive int
	Invalid      int
	Conclusive   int
	FinalStatus  string
}

// OnPidRatio is the share of conclusive resolutions judged ON_PID.
func (r SessionReport) OnPidRatio() float64 {
	if r.Conclusive == 0 {
		return 0
	}
	return float64(r.OnPid) / float64(r.Conclusive)
}

type outcomeCount struct {
	SessionID uint
	Outcome   string
	N         int
}

// Summarize builds one report per session, oldest first.
func Summarize(db *gorm.DB) ([]SessionReport, error) {
	var sessions []model.Session
	if err := db.Order("start_time ASC, id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("error reading sessions: %w", err)
	}

	var counts []outcomeCount
	err := db.Model(&model.Resolution{}).
		Select("session_id, outcome, count(*) AS n").
		Group("session_id, outcome").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("error counting resolutions: %w", err)
	}

	var last []model.StatusChange
	err = db.Raw(`SELECT sc.* FROM status_changes sc
		WHERE sc.id = (SELECT MAX(id) FROM status_changes WHERE session_id = sc.session_id)`).
		Scan(&last).Error
	if err != nil {
		return nil, fmt.Errorf("error reading final status: %w", err)
	}

	byID := make(map[uint]*SessionReport, len(sessions))
	reports := make([]SessionReport, len(sessions))
	for i, s := range sessions {
		reports[i] = SessionReport{
			ID:          s.ID,
			Name:        s.Name,
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			FinalStatus: core.StatusUnknown.String(),
		}
		byID[s.ID] = &reports[i]
	}

	for _, c := range counts {
		r, ok := byID[c.SessionID]
		if !ok {
			continue
		}
		r.Total += c.N
		outcome := core.Outcome(c.Outcome)
		if outcome.Conclusive() {
			r.Conclusive += c.N
		}
		switch outcome {
		case core.OutcomeOnPid:
			r.OnPid += c.N
		case core.OutcomeOffPid:
			r.OffPid += c.N
		case core.OutcomeInconclusive:
			r.Inconclusive += c.N
		default:
			r.Invalid += c.N
		}
	}
	for _, c := range last {
		if r, ok := byID[c.SessionID]; ok {
			r.FinalStatus = c.To
		}
	}

	return reports, nil
}

// Write prints reports as an aligned table.
func Write(w io.Writer, reports []SessionReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSESSION\tSTART\tDURATION\tTOTAL\tON_PID\tOFF_PID\tINCONCLUSIVE\tINVALID\tON%\tFINAL")
	for _, r := range reports {
		duration := "running"
		if r.EndTime != nil {
			duration = r.EndTime.Sub(r.StartTime).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.0f\t%s\n",
			r.ID,
			r.Name,
			r.StartTime.Format(time.DateTime),
			duration,
			r.Total,
			r.OnPid,
			r.OffPid,
			r.Inconclusive,
			r.Invalid,
			r.OnPidRatio()*100,
			r.FinalStatus,
		)
	}
	return tw.Flush()
}
