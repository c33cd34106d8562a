package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
)

// searchFields is the field list requested from the search endpoint.
const searchFields = "id,key,summary,description,status,priority,issuetype,created,updated,resolutiondate,assignee,reporter"

// RemoteError is a non-2xx response from the Jira API.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("jira: remote returned %d: %s", e.Status, body)
}

// Client talks to the Jira REST API with Basic (email:token) auth.
type Client struct {
	baseURL    string
	email      string
	token      string
	maxResults int
	httpClient *http.Client
}

// New creates a Jira client. maxResults bounds the page size of a single
// search request; the client pages through larger result sets.
func New(baseURL, email, token string, maxResults int) *Client {
	if maxResults <= 0 {
		maxResults = 100
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		token:      token,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jira: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

type remoteProject struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectType string `json:"projectTypeKey"`
}

// FetchProject fetches the project metadata record.
func (c *Client) FetchProject(ctx context.Context, projectID string) (*model.Project, error) {
	body, err := c.get(ctx, "/rest/api/3/project/"+url.PathEscape(projectID), nil)
	if err != nil {
		return nil, err
	}

	var rp remoteProject
	if err := json.Unmarshal(body, &rp); err != nil {
		return nil, fmt.Errorf("jira: decoding project: %w", err)
	}

	return &model.Project{
		ID:          rp.ID,
		Key:         rp.Key,
		Name:        rp.Name,
		Description: rp.Description,
		ProjectType: rp.ProjectType,
	}, nil
}

type namedField struct {
	Name string `json:"name"`
}

type personField struct {
	DisplayName string `json:"displayName"`
}

type remoteIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary        string       `json:"summary"`
		Status         *namedField  `json:"status"`
		Priority       *namedField  `json:"priority"`
		IssueType      *namedField  `json:"issuetype"`
		Created        string       `json:"created"`
		Updated        string       `json:"updated"`
		ResolutionDate string       `json:"resolutiondate"`
		Assignee       *personField `json:"assignee"`
		Reporter       *personField `json:"reporter"`
	} `json:"fields"`
}

type searchResponse struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      int           `json:"total"`
	Issues     []remoteIssue `json:"issues"`
}

// FetchIssues fetches the full issue set for the project, paging through
// the search endpoint until a short page is returned.
func (c *Client) FetchIssues(ctx context.Context, projectKey string) ([]model.Issue, error) {
	var issues []model.Issue
	startAt := 0

	for {
		query := url.Values{}
		query.Set("jql", fmt.Sprintf("project = %q", projectKey))
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(c.maxResults))
		query.Set("fields", searchFields)

		body, err := c.get(ctx, "/rest/api/3/search", query)
		if err != nil {
			return nil, err
		}

		var page searchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("jira: decoding search response: %w", err)
		}

		for i := range page.Issues {
			issues = append(issues, flattenIssue(&page.Issues[i]))
		}

		logger.Debug("Fetched issue page",
			logger.F("count", len(page.Issues)),
			logger.F("total", len(issues)))

		if len(page.Issues) < c.maxResults {
			break
		}
		startAt += c.maxResults
	}

	return issues, nil
}

// flattenIssue maps the nested remote shape into the flat Issue record.
// Missing optional fields degrade to sentinels instead of failing the fetch.
func flattenIssue(ri *remoteIssue) model.Issue {
	issue := model.Issue{
		ID:       ri.ID,
		Key:      ri.Key,
		Summary:  ri.Fields.Summary,
		Status:   model.UnknownStatusSentinel,
		Assignee: model.UnassignedSentinel,
		Created:  parseTime(ri.Fields.Created),
		Updated:  parseTime(ri.Fields.Updated),
	}

	if ri.Fields.Status != nil && ri.Fields.Status.Name != "" {
		issue.Status = ri.Fields.Status.Name
	}
	if ri.Fields.Priority != nil {
		issue.Priority = ri.Fields.Priority.Name
	}
	if ri.Fields.IssueType != nil {
		issue.IssueType = ri.Fields.IssueType.Name
	}
	if ri.Fields.Assignee != nil && ri.Fields.Assignee.DisplayName != "" {
		issue.Assignee = ri.Fields.Assignee.DisplayName
	}
	if ri.Fields.Reporter != nil {
		issue.Reporter = ri.Fields.Reporter.DisplayName
	}
	if ri.Fields.ResolutionDate != "" {
		t := parseTime(ri.Fields.ResolutionDate)
		if !t.IsZero() {
			issue.ClosedDate = &t
		}
	}

	return issue
}

// jiraTimeLayout is the timestamp format Jira returns, e.g.
// 2025-08-13T10:15:30.000+0200.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(jiraTimeLayout, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
