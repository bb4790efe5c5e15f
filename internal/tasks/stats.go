package tasks

// Stats aggregates a user's tasks the way the stats page renders them:
// totals, a per-category task count and per-class tracked time.
type Stats struct {
	TotalTasks            int              `json:"totalTasks"`
	CompletedTasks        int              `json:"completedTasks"`
	TotalTimeSpentSeconds int64            `json:"totalTimeSpentSeconds"`
	CategoryCounts        map[string]int   `json:"categoryCounts"`
	ClassTimeSeconds      map[string]int64 `json:"classTimeSeconds"`
}

func ComputeStats(ts []Task) Stats {
	stats := Stats{
		CategoryCounts:   make(map[string]int),
		ClassTimeSeconds: make(map[string]int64),
	}

	for _, t := range ts {
		stats.TotalTasks++
		if t.Completed {
			stats.CompletedTasks++
		}
		stats.TotalTimeSpentSeconds += t.TimeSpentSeconds

		category := t.Category
		if category == "" {
			category = "Uncategorized"
		}
		stats.CategoryCounts[category]++

		if t.ClassName != "" && t.TimeSpentSeconds > 0 {
			stats.ClassTimeSeconds[t.ClassName] += t.TimeSpentSeconds
		}
	}

	return stats
}
