package model

import "time"

// Project is the metadata record for the tracked Jira project.
// It is replaced wholesale on every successful fetch.
type Project struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ProjectType string    `json:"project_type,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	IssuesCount int       `json:"issues_count"`
}

// FallbackProject returns a synthetic project record used when the
// project endpoint fails but the issue fetch succeeded.
func FallbackProject(id, key string) *Project {
	return &Project{
		ID:          id,
		Key:         key,
		Name:        key,
		ProjectType: "software",
	}
}
