package plan

import (
	"fmt"
	"time"
)

// MonthInterval marks the coarsest time-axis tier, which changes label
// on a calendar month boundary instead of at a fixed interval.
const MonthInterval = -1

// TimeStep is one row of the time-axis label table.
type TimeStep struct {
	Bias          int64
	LabelInterval int64
	BarInterval   int64
	Format        func(t time.Time) string
}

// TimeSteps mirrors the four label tiers a graph's time axis can use,
// from densest to coarsest: hour-of-day, day-of-month, ISO week, month.
var TimeSteps = []TimeStep{
	{0, 43200, 3600, func(t time.Time) string { return t.Format("Mon 15:04") }},
	{0, 86400, 21600, func(t time.Time) string { return t.Format("02") }},
	{345600, 86400 * 7, 86400, func(t time.Time) string {
		_, w := t.ISOWeek()
		return fmt.Sprintf("Week %d", w)
	}},
	{0, MonthInterval, 0, func(t time.Time) string { return t.Format("Jan") }},
}

// SelectTimeStep picks the finest label tier whose bar interval still
// covers the sample interval more than ten times over, falling through to
// month labels when nothing finer fits.
func SelectTimeStep(intervalSeconds int64) TimeStep {
	for i := 0; i < len(TimeSteps)-1; i++ {
		if TimeSteps[i].BarInterval > intervalSeconds*10 {
			return TimeSteps[i]
		}
	}
	return TimeSteps[len(TimeSteps)-1]
}

// GridColumn describes what to draw at one time-axis column.
type GridColumn struct {
	Label      string
	HasLabel   bool
	HasBarTick bool
}

// TimeGrid walks graphWidth columns backward from lastUpdate at
// intervalSeconds apart, classifying each column as a labeled boundary,
// a plain bar tick, or neither. Only lastUpdate's Unix time is used:
// buckets and labels are computed in UTC whatever its location.
func TimeGrid(step TimeStep, lastUpdate time.Time, intervalSeconds int64, graphWidth int) []GridColumn {
	cols := make([]GridColumn, graphWidth)
	t := lastUpdate.Unix()
	prevT := t + intervalSeconds

	for j := 0; j < graphWidth; j++ {
		switch {
		case step.LabelInterval > 0:
			if bucket(prevT, step.Bias, step.LabelInterval) != bucket(t, step.Bias, step.LabelInterval) {
				cols[j] = GridColumn{Label: step.Format(time.Unix(prevT, 0).UTC()), HasLabel: true}
			} else if step.BarInterval != 0 && bucket(prevT, step.Bias, step.BarInterval) != bucket(t, step.Bias, step.BarInterval) {
				cols[j] = GridColumn{HasBarTick: true}
			}
		case step.LabelInterval == MonthInterval:
			a := time.Unix(prevT, 0).UTC()
			b := time.Unix(t, 0).UTC()
			if a.Month() != b.Month() {
				cols[j] = GridColumn{Label: step.Format(a), HasLabel: true}
			}
		}

		prevT = t
		t -= intervalSeconds
	}

	return cols
}

func bucket(t, bias, interval int64) int64 {
	return (t - bias) / interval
}
