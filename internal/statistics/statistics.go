// Package statistics derives completion percentages from a task list.
package statistics

import (
	"github.com/bassista/tasksync/internal/result"
	"github.com/bassista/tasksync/internal/task"
)

// Stats holds the share of active and completed tasks, in percent.
type Stats struct {
	ActivePercent    float32 `json:"activeTasksPercent"`
	CompletedPercent float32 `json:"completedTasksPercent"`
}

// ActiveAndCompleted computes the percentages. An empty list yields zeros.
func ActiveAndCompleted(tasks []task.Task) Stats {
	total := len(tasks)
	if total == 0 {
		return Stats{}
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	active := total - completed
	return Stats{
		ActivePercent:    100 * float32(active) / float32(total),
		CompletedPercent: 100 * float32(completed) / float32(total),
	}
}

// FromResult computes the percentages of a successful result and zeros otherwise.
func FromResult(r result.Result[[]task.Task]) Stats {
	return result.Fold(r,
		ActiveAndCompleted,
		func(error) Stats { return Stats{} },
		func() Stats { return Stats{} },
	)
}
