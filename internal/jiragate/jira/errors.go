package jira

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/andygrunwald/go-jira"
)

// NotFoundError signals that a requested upstream entity (issue, user,
// issue type) does not exist
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// IsNotFound reports whether err wraps a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// ValidationError signals that a named transition does not exist among the
// issue's available transitions
type ValidationError struct {
	Transition string
	Available  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transition %q not found, available transitions: %s", e.Transition, strings.Join(e.Available, ", "))
}

// upstreamError converts a failed go-jira call into our error taxonomy: a
// 404 response becomes a NotFoundError for the named entity, everything
// else propagates wrapped
func upstreamError(resp *jira.Response, entity string, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{Entity: entity}
	}
	return fmt.Errorf("failed to fetch %s: %w", entity, err)
}
