package model

import (
	"strings"
	"time"
)

// Sentinel values used when the remote issue omits an optional field.
const (
	UnassignedSentinel    = "Unassigned"
	UnknownStatusSentinel = "Unknown"
)

// Coarse status categories. Jira statuses are an open-ended label set;
// each label maps into one of these buckets for the dashboard summary.
const (
	CategoryToDo       = "todo"
	CategoryInProgress = "in_progress"
	CategoryInReview   = "in_review"
	CategoryDone       = "done"
)

// Issue is the flattened form of a remote Jira issue.
type Issue struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	IssueType   string     `json:"issuetype,omitempty"`
	Assignee    string     `json:"assignee"`
	Reporter    string     `json:"reporter,omitempty"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated"`
	ClosedDate  *time.Time `json:"closed_date,omitempty"`
}

// StatusCategory maps the issue's status label into a coarse category.
func (i *Issue) StatusCategory() string {
	switch strings.ToLower(i.Status) {
	case "to do", "open", "reopened", "backlog":
		return CategoryToDo
	case "in progress":
		return CategoryInProgress
	case "in review", "review":
		return CategoryInReview
	case "done", "closed", "resolved", "cancelled":
		return CategoryDone
	default:
		return CategoryToDo
	}
}

// Snapshot is the full replace-all result of one fetch cycle.
type Snapshot struct {
	ProjectID   string    `json:"project_id"`
	ProjectKey  string    `json:"project_key"`
	LastUpdated time.Time `json:"last_updated"`
	TotalIssues int       `json:"total_issues"`
	Issues      []Issue   `json:"issues"`
}

// StatusBreakdown counts issues per coarse category.
type StatusBreakdown struct {
	ToDo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	InReview   int `json:"in_review"`
	Done       int `json:"done"`
}

// Breakdown computes the status summary for the snapshot.
func (s *Snapshot) Breakdown() StatusBreakdown {
	var b StatusBreakdown
	for i := range s.Issues {
		switch s.Issues[i].StatusCategory() {
		case CategoryToDo:
			b.ToDo++
		case CategoryInProgress:
			b.InProgress++
		case CategoryInReview:
			b.InReview++
		case CategoryDone:
			b.Done++
		}
	}
	return b
}
