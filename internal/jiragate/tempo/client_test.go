package tempo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWorklog(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/worklogs", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	err := client.CreateWorklog(context.Background(), Worklog{
		IssueID:          "10042",
		TimeSpentSeconds: 3600,
		StartDate:        "2025-09-07",
		StartTime:        "09:00:00",
		Description:      "Implementing new feature",
		AuthorAccountID:  "acc-123",
		AccountKey:       "PROJ-DEV",
	})
	require.NoError(t, err)

	assert.Equal(t, "10042", received["issueId"])
	assert.Equal(t, float64(3600), received["timeSpentSeconds"])
	assert.Equal(t, "2025-09-07", received["startDate"])
	assert.Equal(t, "09:00:00", received["startTime"])
	assert.Equal(t, "acc-123", received["authorAccountId"])

	attributes, ok := received["attributes"].([]interface{})
	require.True(t, ok)
	require.Len(t, attributes, 1)
	attribute := attributes[0].(map[string]interface{})
	assert.Equal(t, "_Account_", attribute["key"])
	assert.Equal(t, "PROJ-DEV", attribute["value"])
}

func TestCreateWorklogWithoutAccountOmitsAttributes(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	err := client.CreateWorklog(context.Background(), Worklog{IssueID: "1", TimeSpentSeconds: 60})
	require.NoError(t, err)

	_, hasAttributes := received["attributes"]
	assert.False(t, hasAttributes)
}

func TestCreateWorklogUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"Account not found"}]}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	err := client.CreateWorklog(context.Background(), Worklog{IssueID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Account not found")
}

func TestAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"key": "PROJ-MAIN", "name": "Main Project", "status": "OPEN"},
			{"key": "PROJ-OLD", "name": "Legacy", "status": "CLOSED"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "PROJ-MAIN", accounts[0].Key)
	assert.Equal(t, "OPEN", accounts[0].Status)
}
