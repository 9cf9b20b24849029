package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andygrunwald/go-jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierbr/jiragate/internal/jiragate/policy"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	jiraClient, err := jira.NewClient(nil, server.URL)
	require.NoError(t, err)

	return NewClient(jiraClient, &policy.Policy{
		TypeBlacklist:   map[string][]string{},
		GlobalBlacklist: []string{"customfield_10020"},
	})
}

func TestTransitionByNameUnknownTransition(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-1/transitions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transitions": [
			{"id": "11", "name": "In Progress", "to": {"name": "In Progress"}},
			{"id": "5", "name": "Resolved", "to": {"name": "Resolved"}, "fields": {"resolution": {"required": true}}}
		]}`))
	})

	client := newTestClient(t, mux)

	_, err := client.TransitionByName(context.Background(), "PROJ-1", "Done")
	require.Error(t, err)

	validationErr := &ValidationError{}
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Done", validationErr.Transition)
	assert.Equal(t, []string{"In Progress", "Resolved"}, validationErr.Available)
	assert.Contains(t, err.Error(), "In Progress")
	assert.Contains(t, err.Error(), "Resolved")
}

func TestTransitionByNameMatchesCaseInsensitively(t *testing.T) {
	var transitioned string
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-1/transitions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			transitioned = "yes"
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"transitions": [{"id": "31", "name": "Done", "to": {"name": "Done"}}]}`))
	})

	client := newTestClient(t, mux)

	to, err := client.TransitionByName(context.Background(), "PROJ-1", "dOnE")
	require.NoError(t, err)
	assert.Equal(t, "Done", to)
	assert.Equal(t, "yes", transitioned)
}

func TestTransitionsReportRequiredFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-1/transitions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transitions": [
			{"id": "5", "name": "Resolved", "to": {"name": "Resolved"},
			 "fields": {"resolution": {"required": true}, "comment": {"required": false}}}
		]}`))
	})

	client := newTestClient(t, mux)

	transitions, err := client.Transitions(context.Background(), "PROJ-1")
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, []string{"resolution"}, transitions[0].RequiredFields)
}

func TestIssueTypes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issuetype", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "10001", "name": "Task", "description": "A unit of work", "subtask": false, "iconUrl": "https://jira.example.com/task.svg"},
			{"id": "10003", "name": "Subtarefa", "description": "", "subtask": true}
		]`))
	})

	client := newTestClient(t, mux)

	issueTypes, err := client.IssueTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, issueTypes, 2)

	task := issueTypes["Task"]
	assert.Equal(t, "10001", task.ID)
	assert.Equal(t, "A unit of work", task.Description)
	assert.False(t, task.Subtask)
	assert.Equal(t, "https://jira.example.com/task.svg", task.IconURL)

	subtask := issueTypes["Subtarefa"]
	assert.Equal(t, "No description available", subtask.Description, "empty description must degrade to the fallback")
	assert.True(t, subtask.Subtask)
}

func TestChildrenPaginatesSearchResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key": "PROJ-1", "fields": {"summary": "The epic", "status": {"name": "Open"}}}`))
	})
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("startAt") == "2" {
			_, _ = w.Write([]byte(`{"startAt": 2, "maxResults": 2, "total": 3, "issues": [
				{"key": "PROJ-4", "fields": {"summary": "Third child", "issuetype": {"name": "Task"}, "status": {"name": "Open"}}}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"startAt": 0, "maxResults": 2, "total": 3, "issues": [
			{"key": "PROJ-2", "fields": {"summary": "First child", "issuetype": {"name": "Task"}, "status": {"name": "Open"}}},
			{"key": "PROJ-3", "fields": {"summary": "Second child", "issuetype": {"name": "Task"}, "status": {"name": "Done"}}}
		]}`))
	})

	client := newTestClient(t, mux)

	children, err := client.Children(context.Background(), "PROJ-1")
	require.NoError(t, err)

	assert.Equal(t, 3, children.Total, "total must count all pages, not just the first")
	require.Len(t, children.Children, 3)
	assert.Equal(t, "PROJ-2", children.Children[0].Key)
	assert.Equal(t, "PROJ-4", children.Children[2].Key)
}

func TestIssueNotFound(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	_, err := client.Issue(context.Background(), "PROJ-404")
	require.Error(t, err)
	assert.True(t, IsNotFound(err), "expected a NotFoundError, got %v", err)
	assert.Contains(t, err.Error(), "PROJ-404")
}

func TestIssueTypeFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/createmeta", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"projects": [{"key": "PROJ", "issuetypes": [{
			"name": "Task",
			"fields": {
				"summary": {"name": "Summary", "required": true, "schema": {"type": "string"}},
				"customfield_10058": {"name": "Account", "required": false, "schema": {"type": "option"},
					"allowedValues": [{"id": "991", "value": "Main"}, {"id": "992", "value": "Support"}]},
				"customfield_10020": {"name": "Sprint", "required": false, "schema": {"type": "array"}}
			}
		}]}]}`))
	})

	client := newTestClient(t, mux)

	descriptors, err := client.IssueTypeFields(context.Background(), "PROJ", "Task", "")
	require.NoError(t, err)

	ids := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		ids = append(ids, descriptor.ID)
	}
	assert.Equal(t, []string{"customfield_10058", "summary"}, ids, "blacklisted sprint field must be dropped")

	account := descriptors[0]
	assert.Equal(t, "Account", account.Name)
	assert.Equal(t, "option", account.Type)
	require.Len(t, account.AllowedValues, 2)
	assert.Equal(t, "991", account.AllowedValues[0].ID)
	assert.Equal(t, "Main", account.AllowedValues[0].Value)
}

func TestIssueTypeFieldsFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/createmeta", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"projects": [{"key": "PROJ", "issuetypes": [{
			"name": "Task",
			"fields": {
				"summary": {"name": "Summary", "required": true, "schema": {"type": "string"}},
				"customfield_10058": {"name": "Account", "required": false, "schema": {"type": "option"}}
			}
		}]}]}`))
	})

	client := newTestClient(t, mux)

	descriptors, err := client.IssueTypeFields(context.Background(), "PROJ", "Task", "account")
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "customfield_10058", descriptors[0].ID)
}

func TestIssueTypeFieldsUnknownType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/createmeta", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"projects": [{"key": "PROJ", "issuetypes": [{"name": "Task", "fields": {}}]}]}`))
	})

	client := newTestClient(t, mux)

	_, err := client.IssueTypeFields(context.Background(), "PROJ", "Bug", "")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLastComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key": "PROJ-1", "fields": {"comment": {"comments": [
			{"id": "1", "author": {"displayName": "Jane"}, "created": "2025-09-01T10:00:00.000+0000", "body": "first"},
			{"id": "2", "author": {"displayName": "John"}, "created": "2025-09-02T10:00:00.000+0000", "body": "second"},
			{"id": "3", "author": {"displayName": "Jane"}, "created": "2025-09-03T10:00:00.000+0000", "body": "third"}
		]}}}`))
	})

	client := newTestClient(t, mux)

	comments, err := client.LastComments(context.Background(), "PROJ-1", 2)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].Body)
	assert.Equal(t, "third", comments[1].Body)
	assert.Equal(t, "Jane", comments[1].Author)
}

func TestProjectIssueDegradesWithoutMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key": "PROJ-1", "fields": {
			"summary": "A task",
			"description": "",
			"issuetype": {"name": "Task"},
			"project": {"key": "PROJ"},
			"status": {"name": "Open"},
			"customfield_10058": {"value": "High"}
		}}`))
	})
	// No createmeta handler: metadata fetch fails and must be absorbed

	client := newTestClient(t, mux)

	projection, err := client.ProjectIssue(context.Background(), "PROJ-1")
	require.NoError(t, err)

	assert.Equal(t, NoDescription, projection.Description)
	value, ok := projection.CustomFields["customfield_10058"]
	require.True(t, ok)
	assert.Equal(t, "customfield_10058", value.Name, "field name must degrade to the field id")
	assert.Equal(t, "High", value.Value)
}
