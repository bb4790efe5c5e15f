package tasks

import (
	"strings"
	"time"
)

const (
	CategorySchool   = "School"
	CategoryPersonal = "Personal"
)

// Task is the locally-owned task record. DueDate and CompletedAt are
// nullable; everything else has a zero-value default on create.
type Task struct {
	ID               string     `json:"id"`
	UserID           string     `json:"-"`
	Title            string     `json:"title"`
	Category         string     `json:"category"`
	ClassName        string     `json:"className"`
	Notes            string     `json:"notes"`
	Link             string     `json:"link"`
	StartDate        time.Time  `json:"startDate"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	TimeSpentSeconds int64      `json:"timeSpentSeconds"`
	Progress         int        `json:"progress"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// NormalizeCategory maps free-form input onto the two known categories,
// defaulting to School as the original client does.
func NormalizeCategory(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), CategoryPersonal) {
		return CategoryPersonal
	}
	return CategorySchool
}

// ClampProgress bounds progress to [0, 100].
func ClampProgress(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
