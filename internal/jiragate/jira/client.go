package jira

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
	"github.com/trivago/tgo/tcontainer"

	"github.com/atelierbr/jiragate/internal/jiragate/fields"
	"github.com/atelierbr/jiragate/internal/jiragate/policy"
)

// Client wraps the go-jira client with the field-gated tool surface
type Client struct {
	jiraClient  *jira.Client
	fieldPolicy *policy.Policy
}

// NewClient creates a new Jira client around an already-authenticated
// go-jira client
func NewClient(jiraClient *jira.Client, fieldPolicy *policy.Policy) *Client {
	return &Client{
		jiraClient:  jiraClient,
		fieldPolicy: fieldPolicy,
	}
}

// Issue fetches one raw issue by key
func (c *Client) Issue(ctx context.Context, key string) (*jira.Issue, error) {
	issue, resp, err := c.jiraClient.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		return nil, upstreamError(resp, fmt.Sprintf("issue %s", key), err)
	}
	return issue, nil
}

// ProjectIssue fetches an issue and assembles its normalized projection.
// Schema metadata enrichment is advisory: when the create metadata cannot
// be retrieved, field names degrade to field ids.
func (c *Client) ProjectIssue(ctx context.Context, key string) (*Projection, error) {
	issue, err := c.Issue(ctx, key)
	if err != nil {
		return nil, err
	}

	issueType := issue.Fields.Type.Name
	schemaNames := c.schemaFieldNames(ctx, issue.Fields.Project.Key, issueType)
	blacklist := c.fieldPolicy.EffectiveBlacklist(issueType)

	fetch := func(key string) (*jira.Issue, error) { return c.Issue(ctx, key) }
	return project(issue, fetch, schemaNames, blacklist), nil
}

// ChildIssues holds the children of a parent issue
type ChildIssues struct {
	Parent   ParentInfo   `json:"parent_info"`
	Children []ChildIssue `json:"children"`
	Total    int          `json:"total_children"`
}

type ParentInfo struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type ChildIssue struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	IssueType string `json:"issue_type"`
	Assignee  string `json:"assignee"`
	Priority  string `json:"priority"`
}

// Children returns all issues that have the given issue as their parent
func (c *Client) Children(ctx context.Context, parentKey string) (*ChildIssues, error) {
	parent, err := c.Issue(ctx, parentKey)
	if err != nil {
		return nil, err
	}

	jql := fmt.Sprintf("parent = %s", parentKey)
	var children []jira.Issue
	options := &jira.SearchOptions{MaxResults: 50}
	for {
		page, resp, err := c.jiraClient.Issue.SearchWithContext(ctx, jql, options)
		if err != nil {
			return nil, fmt.Errorf("failed to search children of %s: %w", parentKey, err)
		}
		children = append(children, page...)
		if len(page) == 0 || resp.StartAt+len(page) >= resp.Total {
			break
		}
		options.StartAt = resp.StartAt + len(page)
	}

	result := &ChildIssues{
		Parent: ParentInfo{
			Key:   parent.Key,
			Title: parent.Fields.Summary,
		},
		Children: []ChildIssue{},
	}
	if parent.Fields.Status != nil {
		result.Parent.Status = parent.Fields.Status.Name
	}

	for _, child := range children {
		item := ChildIssue{
			Key:       child.Key,
			Title:     child.Fields.Summary,
			IssueType: child.Fields.Type.Name,
			Assignee:  Unassigned,
			Priority:  NoPriority,
		}
		if child.Fields.Status != nil {
			item.Status = child.Fields.Status.Name
		}
		if child.Fields.Assignee != nil {
			item.Assignee = child.Fields.Assignee.DisplayName
		}
		if child.Fields.Priority != nil {
			item.Priority = child.Fields.Priority.Name
		}
		result.Children = append(result.Children, item)
	}
	result.Total = len(result.Children)

	return result, nil
}

// IssueTypeInfo describes one issue type available on the server
type IssueTypeInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Subtask     bool   `json:"subtask"`
	IconURL     string `json:"icon_url"`
}

// IssueTypes returns all available issue types, keyed by name. go-jira has
// no service for the issuetype resource, so the request goes through the
// client's request plumbing directly.
func (c *Client) IssueTypes(ctx context.Context) (map[string]IssueTypeInfo, error) {
	request, err := c.jiraClient.NewRequestWithContext(ctx, http.MethodGet, "rest/api/2/issuetype", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build issue type request: %w", err)
	}

	var issueTypes []jira.IssueType
	if _, err := c.jiraClient.Do(request, &issueTypes); err != nil {
		return nil, fmt.Errorf("failed to list issue types: %w", err)
	}

	result := make(map[string]IssueTypeInfo, len(issueTypes))
	for _, issueType := range issueTypes {
		description := issueType.Description
		if description == "" {
			description = "No description available"
		}
		result[issueType.Name] = IssueTypeInfo{
			ID:          issueType.ID,
			Description: description,
			Subtask:     issueType.Subtask,
			IconURL:     issueType.IconURL,
		}
	}

	return result, nil
}

// IssueTypeFields returns the create-metadata field descriptors for a
// project and issue type, with blacklisted fields dropped. A nonempty
// fieldFilter restricts the result to the field with that id or name.
func (c *Client) IssueTypeFields(ctx context.Context, projectKey, issueTypeName, fieldFilter string) ([]fields.SchemaField, error) {
	metaType, err := c.createMetaIssueType(ctx, projectKey, issueTypeName)
	if err != nil {
		return nil, err
	}

	blacklist := c.fieldPolicy.EffectiveBlacklist(issueTypeName)

	var descriptors []fields.SchemaField
	for fieldID, rawDescriptor := range metaType.Fields {
		if blacklist.Has(fieldID) {
			continue
		}
		descriptor := parseSchemaField(fieldID, rawDescriptor)
		if fieldFilter != "" && !strings.EqualFold(fieldFilter, descriptor.ID) && !strings.EqualFold(fieldFilter, descriptor.Name) {
			continue
		}
		descriptors = append(descriptors, descriptor)
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].ID < descriptors[j].ID })
	return descriptors, nil
}

// TransitionOption describes one workflow transition available on an issue
type TransitionOption struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	To             string   `json:"to"`
	RequiredFields []string `json:"required_fields"`
}

// Transitions returns the workflow transitions currently available on an
// issue, in server order
func (c *Client) Transitions(ctx context.Context, key string) ([]TransitionOption, error) {
	transitions, resp, err := c.jiraClient.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return nil, upstreamError(resp, fmt.Sprintf("transitions of issue %s", key), err)
	}

	options := make([]TransitionOption, 0, len(transitions))
	for _, transition := range transitions {
		option := TransitionOption{
			ID:             transition.ID,
			Name:           transition.Name,
			To:             transition.To.Name,
			RequiredFields: []string{},
		}
		for fieldID, field := range transition.Fields {
			if field.Required {
				option.RequiredFields = append(option.RequiredFields, fieldID)
			}
		}
		sort.Strings(option.RequiredFields)
		options = append(options, option)
	}

	return options, nil
}

// TransitionByName executes the transition matching name case-insensitively
// and returns the status it moved the issue to. An unknown name yields a
// ValidationError enumerating the available transitions.
func (c *Client) TransitionByName(ctx context.Context, key, name string) (string, error) {
	transitions, err := c.Transitions(ctx, key)
	if err != nil {
		return "", err
	}

	var match *TransitionOption
	for i := range transitions {
		if strings.EqualFold(transitions[i].Name, name) {
			match = &transitions[i]
			break
		}
	}

	if match == nil {
		available := make([]string, 0, len(transitions))
		for _, transition := range transitions {
			available = append(available, transition.Name)
		}
		return "", &ValidationError{Transition: name, Available: available}
	}

	if _, err := c.jiraClient.Issue.DoTransitionWithContext(ctx, key, match.ID); err != nil {
		return "", fmt.Errorf("failed to transition issue %s: %w", key, err)
	}

	return match.To, nil
}

// CreateParams holds the inputs for creating an issue
type CreateParams struct {
	Project       string
	Parent        string
	AssigneeEmail string
	Title         string
	IssueType     string
	Description   string
	CustomFields  map[string]interface{}
}

// AccountID resolves a user's account id by email address
func (c *Client) AccountID(ctx context.Context, email string) (string, error) {
	users, resp, err := c.jiraClient.User.FindWithContext(ctx, email)
	if err != nil {
		return "", upstreamError(resp, fmt.Sprintf("user %s", email), err)
	}
	if len(users) == 0 {
		return "", &NotFoundError{Entity: fmt.Sprintf("user with email %s", email)}
	}
	logrus.Infof("Found user %s with accountId %s", users[0].DisplayName, users[0].AccountID)
	return users[0].AccountID, nil
}

// CreateIssue resolves the assignee by email, assembles the field map and
// creates the issue remotely, returning the new issue key
func (c *Client) CreateIssue(ctx context.Context, params CreateParams) (string, error) {
	accountID, err := c.AccountID(ctx, params.AssigneeEmail)
	if err != nil {
		return "", err
	}

	issueFields := &jira.IssueFields{
		Project:     jira.Project{Key: params.Project},
		Summary:     params.Title,
		Type:        jira.IssueType{Name: params.IssueType},
		Description: params.Description,
		Assignee:    &jira.User{AccountID: accountID},
	}
	if params.Parent != "" {
		issueFields.Parent = &jira.Parent{Key: params.Parent}
	}
	if len(params.CustomFields) > 0 {
		unknowns := tcontainer.NewMarshalMap()
		for fieldID, value := range params.CustomFields {
			if value == nil {
				continue
			}
			unknowns[fieldID] = value
		}
		issueFields.Unknowns = unknowns
	}

	created, _, err := c.jiraClient.Issue.CreateWithContext(ctx, &jira.Issue{Fields: issueFields})
	if err != nil {
		return "", fmt.Errorf("failed to create issue: %w", err)
	}

	return created.Key, nil
}

// Comment is one comment on an issue
type Comment struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Created string `json:"created"`
	Body    string `json:"body"`
}

// AddComment adds a comment to an issue. The body passes through verbatim.
func (c *Client) AddComment(ctx context.Context, key, body string) (*Comment, error) {
	comment, resp, err := c.jiraClient.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: body})
	if err != nil {
		return nil, upstreamError(resp, fmt.Sprintf("issue %s", key), err)
	}

	return &Comment{
		ID:      comment.ID,
		Author:  comment.Author.DisplayName,
		Created: comment.Created,
		Body:    comment.Body,
	}, nil
}

// LastComments returns the newest n comments of an issue, oldest first
func (c *Client) LastComments(ctx context.Context, key string, n int) ([]Comment, error) {
	issue, resp, err := c.jiraClient.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{Fields: "comment"})
	if err != nil {
		return nil, upstreamError(resp, fmt.Sprintf("issue %s", key), err)
	}

	var comments []Comment
	if issue.Fields.Comments == nil {
		return comments, nil
	}

	all := issue.Fields.Comments.Comments
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	for _, comment := range all {
		comments = append(comments, Comment{
			ID:      comment.ID,
			Author:  comment.Author.DisplayName,
			Created: comment.Created,
			Body:    comment.Body,
		})
	}

	return comments, nil
}

// schemaFieldNames returns a field id to display name mapping from the
// create metadata. Metadata enrichment is advisory: any failure degrades to
// an empty mapping.
func (c *Client) schemaFieldNames(ctx context.Context, projectKey, issueTypeName string) map[string]string {
	metaType, err := c.createMetaIssueType(ctx, projectKey, issueTypeName)
	if err != nil {
		logrus.WithError(err).Warnf("cannot fetch create metadata for %s/%s, field names degrade to ids", projectKey, issueTypeName)
		return nil
	}

	names := make(map[string]string, len(metaType.Fields))
	for fieldID, rawDescriptor := range metaType.Fields {
		if descriptor, ok := rawDescriptor.(map[string]interface{}); ok {
			if name, ok := descriptor["name"].(string); ok {
				names[fieldID] = name
			}
		}
	}
	return names
}

func (c *Client) createMetaIssueType(ctx context.Context, projectKey, issueTypeName string) (*jira.MetaIssueType, error) {
	meta, resp, err := c.jiraClient.Issue.GetCreateMetaWithOptionsWithContext(ctx, &jira.GetQueryOptions{
		ProjectKeys: projectKey,
		Expand:      "projects.issuetypes.fields",
	})
	if err != nil {
		return nil, upstreamError(resp, fmt.Sprintf("create metadata for project %s", projectKey), err)
	}

	project := meta.GetProjectWithKey(projectKey)
	if project == nil {
		return nil, &NotFoundError{Entity: fmt.Sprintf("project %s", projectKey)}
	}

	for _, issueType := range project.IssueTypes {
		if strings.EqualFold(issueType.Name, issueTypeName) {
			return issueType, nil
		}
	}
	return nil, &NotFoundError{Entity: fmt.Sprintf("issue type %s in project %s", issueTypeName, projectKey)}
}

// parseSchemaField decodes one create-metadata field descriptor into its
// typed form. The raw descriptor is a loosely typed map; missing members
// degrade to zero values.
func parseSchemaField(fieldID string, rawDescriptor interface{}) fields.SchemaField {
	descriptor := fields.SchemaField{ID: fieldID, Name: fieldID}

	obj, ok := rawDescriptor.(map[string]interface{})
	if !ok {
		return descriptor
	}

	if name, ok := obj["name"].(string); ok && name != "" {
		descriptor.Name = name
	}
	if required, ok := obj["required"].(bool); ok {
		descriptor.Required = required
	}
	if schema, ok := obj["schema"].(map[string]interface{}); ok {
		if schemaType, ok := schema["type"].(string); ok {
			descriptor.Type = schemaType
		}
	}
	if rawValues, ok := obj["allowedValues"].([]interface{}); ok {
		for _, rawValue := range rawValues {
			value, ok := rawValue.(map[string]interface{})
			if !ok {
				continue
			}
			allowed := fields.AllowedValue{}
			if id, ok := value["id"].(string); ok {
				allowed.ID = id
			}
			if v, ok := value["value"].(string); ok {
				allowed.Value = v
			}
			if key, ok := value["key"].(string); ok {
				allowed.Key = key
			}
			if name, ok := value["name"].(string); ok {
				allowed.Name = name
			}
			descriptor.AllowedValues = append(descriptor.AllowedValues, allowed)
		}
	}

	return descriptor
}
