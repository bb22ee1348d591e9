package contextbuilder

import (
	"fmt"
	"time"
)

// businessHoursStart and businessHoursEnd bound NYSE market hours (9:30 AM
// to 4:00 PM) expressed as minutes since midnight, ported from
// original_source's MarketCalendar. No external market-calendar package
// exists in the pack, so this stays hand-rolled (see DESIGN.md).
const (
	businessHoursStart = 9*60 + 30
	businessHoursEnd   = 16 * 60
)

// TemporalContext is the computed "current time" block C7 injects into
// every stage, per §4.7 assembly rule 5. Unlike RepositoryFacts or
// AIHelperInsights it is never caller-supplied; the builder derives it from
// the clock at assembly time.
type TemporalContext struct {
	CurrentDate     string
	CurrentDateTime string
	IsBusinessDay   bool
	IsMarketHours   bool
	FiscalQuarter   string
}

// buildTemporalContext computes the current temporal block in loc (the
// original used US/Eastern for market-hours purposes; callers pass the
// zone that matters to them, defaulting to UTC via newBuilder).
func buildTemporalContext(now time.Time, loc *time.Location) TemporalContext {
	local := now.In(loc)
	businessDay := isBusinessDay(local)
	return TemporalContext{
		CurrentDate:     local.Format("2006-01-02"),
		CurrentDateTime: local.Format("Monday, January 2, 2006 at 15:04:05 MST"),
		IsBusinessDay:   businessDay,
		IsMarketHours:   businessDay && isMarketHours(local),
		FiscalQuarter:   fiscalQuarter(local),
	}
}

func isBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

func isMarketHours(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= businessHoursStart && minutes <= businessHoursEnd
}

func fiscalQuarter(t time.Time) string {
	var q int
	switch t.Month() {
	case time.January, time.February, time.March:
		q = 1
	case time.April, time.May, time.June:
		q = 2
	case time.July, time.August, time.September:
		q = 3
	default:
		q = 4
	}
	return fmt.Sprintf("Q%d %d", q, t.Year())
}

func (tc TemporalContext) format() string {
	return fmt.Sprintf(
		"Current date: %s\nCurrent time: %s\nBusiness day: %t, Market hours: %t, Fiscal quarter: %s",
		tc.CurrentDate, tc.CurrentDateTime, tc.IsBusinessDay, tc.IsMarketHours, tc.FiscalQuarter,
	)
}
