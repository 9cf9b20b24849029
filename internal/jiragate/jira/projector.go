package jira

import (
	"fmt"
	"strings"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/atelierbr/jiragate/internal/jiragate/fields"
)

// Sentinel values substituted when real data is absent
const (
	NoDescription = "No Description"
	NoParent      = "No Parent"
	Unassigned    = "Unassigned"
	NoPriority    = "No Priority"
)

// jiraTimeLayout matches the timestamp format Jira uses on the wire
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Projection is the normalized view of one issue
type Projection struct {
	Key          string                  `json:"key"`
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	IssueType    string                  `json:"issue_type"`
	Status       string                  `json:"status"`
	Project      string                  `json:"project"`
	Parent       string                  `json:"parent"`
	Assignee     string                  `json:"assignee"`
	Priority     string                  `json:"priority"`
	Created      string                  `json:"created"`
	Updated      string                  `json:"updated"`
	Subtasks     []Subtask               `json:"subtasks"`
	SubtaskCount int                     `json:"subtasks_count"`
	CustomFields map[string]fields.Value `json:"custom_fields"`
}

// Subtask is the normalized view of one subtask of a projected issue
type Subtask struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	IssueType   string `json:"issue_type"`
	Assignee    string `json:"assignee"`
	Priority    string `json:"priority"`
}

// project assembles a Projection from a raw issue. Subtask and parent
// details are fetched through fetch; schemaNames maps field ids to display
// names and may be empty when metadata could not be retrieved.
func project(issue *jira.Issue, fetch func(key string) (*jira.Issue, error), schemaNames map[string]string, blacklist sets.Set[string]) *Projection {
	projection := &Projection{
		Key:          issue.Key,
		Title:        issue.Fields.Summary,
		Description:  describeOrSentinel(issue.Fields.Description),
		IssueType:    issue.Fields.Type.Name,
		Project:      issue.Fields.Project.Key,
		Parent:       NoParent,
		Assignee:     Unassigned,
		Priority:     NoPriority,
		Created:      formatTime(issue.Fields.Created),
		Updated:      formatTime(issue.Fields.Updated),
		Subtasks:     []Subtask{},
		CustomFields: map[string]fields.Value{},
	}

	if issue.Fields.Status != nil {
		projection.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		projection.Assignee = issue.Fields.Assignee.DisplayName
	}
	if issue.Fields.Priority != nil {
		projection.Priority = issue.Fields.Priority.Name
	}

	if parent := issue.Fields.Parent; parent != nil {
		projection.Parent = projectParent(parent.Key, fetch)
	}

	for _, stub := range issue.Fields.Subtasks {
		subtask, err := projectSubtask(stub.Key, fetch)
		if err != nil {
			logrus.WithError(err).Warnf("cannot fetch subtask %s, skipping", stub.Key)
			continue
		}
		projection.Subtasks = append(projection.Subtasks, subtask)
	}
	projection.SubtaskCount = len(projection.Subtasks)

	for fieldID, rawValue := range issue.Fields.Unknowns {
		value, ok := fields.Normalize(fieldID, rawValue, schemaNames[fieldID], blacklist)
		if !ok {
			continue
		}
		projection.CustomFields[fieldID] = value
	}

	return projection
}

// projectParent formats a parent reference as "KEY - summary", degrading to
// the bare key when the parent cannot be fetched
func projectParent(parentKey string, fetch func(key string) (*jira.Issue, error)) string {
	parent, err := fetch(parentKey)
	if err != nil {
		logrus.WithError(err).Warnf("cannot fetch parent %s", parentKey)
		return parentKey
	}
	return fmt.Sprintf("%s - %s", parent.Key, parent.Fields.Summary)
}

func projectSubtask(key string, fetch func(key string) (*jira.Issue, error)) (Subtask, error) {
	issue, err := fetch(key)
	if err != nil {
		return Subtask{}, err
	}

	subtask := Subtask{
		Key:         issue.Key,
		Title:       issue.Fields.Summary,
		Description: describeOrSentinel(issue.Fields.Description),
		IssueType:   issue.Fields.Type.Name,
		Assignee:    Unassigned,
		Priority:    NoPriority,
	}
	if issue.Fields.Status != nil {
		subtask.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		subtask.Assignee = issue.Fields.Assignee.DisplayName
	}
	if issue.Fields.Priority != nil {
		subtask.Priority = issue.Fields.Priority.Name
	}

	return subtask, nil
}

// describeOrSentinel passes a description through verbatim (wiki markup
// included) and substitutes the sentinel when it is absent or blank
func describeOrSentinel(description string) string {
	if strings.TrimSpace(description) == "" {
		return NoDescription
	}
	return description
}

func formatTime(t jira.Time) string {
	converted := time.Time(t)
	if converted.IsZero() {
		return ""
	}
	return converted.Format(jiraTimeLayout)
}
