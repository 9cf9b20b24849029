// Package service orchestrates the Jira tool surface: it composes the Jira
// client, the Tempo client and the tracking store into the operations the
// agent-facing command layer exposes.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atelierbr/jiragate/internal/jiragate/fields"
	"github.com/atelierbr/jiragate/internal/jiragate/jira"
	"github.com/atelierbr/jiragate/internal/jiragate/tempo"
	"github.com/atelierbr/jiragate/internal/jiragate/tracking"
)

const defaultWorklogDescription = "Task activity"

// Service orchestrates the jiragate tool operations
type Service struct {
	jiraClient  *jira.Client
	tempoClient *tempo.Client
	store       *tracking.Store
}

// NewService creates a service from already-constructed collaborators; all
// of them must be non-nil
func NewService(jiraClient *jira.Client, tempoClient *tempo.Client, store *tracking.Store) *Service {
	return &Service{
		jiraClient:  jiraClient,
		tempoClient: tempoClient,
		store:       store,
	}
}

// IssueInfo returns the normalized projection of an issue
func (s *Service) IssueInfo(ctx context.Context, key string) (*jira.Projection, error) {
	return s.jiraClient.ProjectIssue(ctx, key)
}

// Children returns all issues that have the given issue as their parent
func (s *Service) Children(ctx context.Context, parentKey string) (*jira.ChildIssues, error) {
	return s.jiraClient.Children(ctx, parentKey)
}

// IssueTypes returns all available issue types, keyed by name
func (s *Service) IssueTypes(ctx context.Context) (map[string]jira.IssueTypeInfo, error) {
	return s.jiraClient.IssueTypes(ctx)
}

// TypeFields returns the visible field descriptors for a project and issue
// type
func (s *Service) TypeFields(ctx context.Context, projectKey, issueTypeName, fieldFilter string) ([]fields.SchemaField, error) {
	return s.jiraClient.IssueTypeFields(ctx, projectKey, issueTypeName, fieldFilter)
}

// Transitions returns the workflow transitions available on an issue
func (s *Service) Transitions(ctx context.Context, key string) ([]jira.TransitionOption, error) {
	return s.jiraClient.Transitions(ctx, key)
}

// Transition moves an issue through the named workflow transition and
// mirrors the status change into the tracking store
func (s *Service) Transition(ctx context.Context, key, transitionName string) (string, error) {
	issue, err := s.jiraClient.Issue(ctx, key)
	if err != nil {
		return "", err
	}
	oldStatus := ""
	if issue.Fields.Status != nil {
		oldStatus = issue.Fields.Status.Name
	}

	newStatus, err := s.jiraClient.TransitionByName(ctx, key, transitionName)
	if err != nil {
		return "", err
	}

	// The remote transition already happened; a mirror failure must not
	// report the operation as failed
	if err := s.store.UpdateIssueStatus(ctx, key, newStatus, oldStatus); err != nil {
		logrus.WithError(err).Warnf("cannot record transition of %s in the local history", key)
	}

	return fmt.Sprintf("Successfully transitioned %s using transition '%s'", key, transitionName), nil
}

// Create creates an issue remotely and mirrors it into the tracking store
func (s *Service) Create(ctx context.Context, params jira.CreateParams) (string, error) {
	key, err := s.jiraClient.CreateIssue(ctx, params)
	if err != nil {
		return "", err
	}

	if err := s.store.StoreIssue(ctx, key, params.IssueType, params.Title, params.Parent, ""); err != nil {
		logrus.WithError(err).Warnf("cannot record created issue %s in the local history", key)
	}

	return key, nil
}

// Comment adds a comment to an issue and mirrors it into the tracking store
func (s *Service) Comment(ctx context.Context, key, body string) (*jira.Comment, error) {
	comment, err := s.jiraClient.AddComment(ctx, key, body)
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreComment(ctx, comment.ID, key, comment.Author, comment.Body); err != nil {
		logrus.WithError(err).Warnf("cannot record comment on %s in the local history", key)
	}

	return comment, nil
}

// Comments returns the newest n comments of an issue
func (s *Service) Comments(ctx context.Context, key string, n int) ([]jira.Comment, error) {
	return s.jiraClient.LastComments(ctx, key, n)
}

// History returns the locally tracked issue history
func (s *Service) History(ctx context.Context, days int) ([]tracking.HistoryEntry, error) {
	return s.store.IssueHistory(ctx, days)
}

// Statistics summarizes the locally tracked issues
func (s *Service) Statistics(ctx context.Context) (*tracking.Statistics, error) {
	return s.store.IssueStatistics(ctx)
}

// WorklogParams holds the inputs for logging time against an issue
type WorklogParams struct {
	IssueKey      string
	AssigneeEmail string
	StartTime     string // HH:MM:SS
	TimeInSeconds int
	AccountKey    string
	Description   string
	Date          string // YYYY-MM-DD, empty means today
}

// LogWork records a worklog entry in Tempo. Failures are expected to be
// converted to text at the boundary (see Result).
func (s *Service) LogWork(ctx context.Context, params WorklogParams) (string, error) {
	issue, err := s.jiraClient.Issue(ctx, params.IssueKey)
	if err != nil {
		return "", err
	}

	accountID, err := s.jiraClient.AccountID(ctx, params.AssigneeEmail)
	if err != nil {
		return "", err
	}

	description := params.Description
	if description == "" {
		description = defaultWorklogDescription
	}
	date := params.Date
	if date == "" {
		date = CurrentDate()
	}

	if err := s.tempoClient.CreateWorklog(ctx, tempo.Worklog{
		IssueID:          issue.ID,
		TimeSpentSeconds: params.TimeInSeconds,
		StartDate:        date,
		StartTime:        params.StartTime,
		Description:      description,
		AuthorAccountID:  accountID,
		AccountKey:       params.AccountKey,
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("Successfully logged %d seconds on %s", params.TimeInSeconds, params.IssueKey), nil
}

// Accounts returns the open Tempo accounts as agent-readable text, one
// account per line
func (s *Service) Accounts(ctx context.Context) (string, error) {
	accounts, err := s.tempoClient.Accounts(ctx)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, account := range accounts {
		if !strings.EqualFold(account.Status, "OPEN") {
			continue
		}
		lines = append(lines, fmt.Sprintf("- Account Key: %s, Account Name: %s", account.Key, account.Name))
	}
	if len(lines) == 0 {
		return "No active accounts available", nil
	}

	return strings.Join(lines, "\n"), nil
}

// CreationGuide renders instructions for creating an issue of the given
// type, listing its visible fields with allowed values
func (s *Service) CreationGuide(ctx context.Context, projectKey, issueTypeName string) (string, error) {
	descriptors, err := s.TypeFields(ctx, projectKey, issueTypeName, "")
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "How to create a %s in project %s:\n\n", issueTypeName, projectKey)
	builder.WriteString("Required fields:\n")
	writeGuideFields(&builder, descriptors, true)
	builder.WriteString("\nOptional fields:\n")
	writeGuideFields(&builder, descriptors, false)
	return builder.String(), nil
}

func writeGuideFields(builder *strings.Builder, descriptors []fields.SchemaField, required bool) {
	for _, descriptor := range descriptors {
		if descriptor.Required != required {
			continue
		}
		fmt.Fprintf(builder, "- %s (%s, type %s)", descriptor.Name, descriptor.ID, descriptor.Type)
		if len(descriptor.AllowedValues) > 0 {
			values := make([]string, 0, len(descriptor.AllowedValues))
			for _, allowed := range descriptor.AllowedValues {
				switch {
				case allowed.Value != "":
					values = append(values, allowed.Value)
				case allowed.Name != "":
					values = append(values, allowed.Name)
				case allowed.Key != "":
					values = append(values, allowed.Key)
				}
			}
			if len(values) > 0 {
				fmt.Fprintf(builder, ", allowed values: %s", strings.Join(values, ", "))
			}
		}
		builder.WriteString("\n")
	}
}

// CurrentDate returns today's date in YYYY-MM-DD format
func CurrentDate() string {
	return time.Now().Format("2006-01-02")
}
