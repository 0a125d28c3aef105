package scheduler

import (
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
)

// ComputeReminders anchors one reminder at the start of every step. Step i
// fires at start plus the summed durations of the steps before it.
func ComputeReminders(steps []model.Step, start time.Time) []model.Reminder {
	out := make([]model.Reminder, 0, len(steps))
	clock := start.UTC()
	for _, st := range steps {
		out = append(out, model.Reminder{
			StepID:        st.ID,
			ScheduledTime: clock,
			Triggered:     false,
		})
		clock = clock.Add(model.Minutes(st.EstimatedDuration))
	}
	return out
}
