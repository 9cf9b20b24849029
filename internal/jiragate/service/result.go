package service

import "fmt"

// Result carries the outcome of a tool operation across the agent boundary.
// Agents consume plain text, so failures surface as text rather than as a
// protocol error.
type Result struct {
	text string
	err  error
}

// OK wraps a successful outcome
func OK(text string) Result {
	return Result{text: text}
}

// Fail wraps a failed outcome
func Fail(err error) Result {
	return Result{err: err}
}

// Text renders the result for the agent. Failures become a readable
// "operation failed" line instead of propagating.
func (r Result) Text() string {
	if r.err != nil {
		return fmt.Sprintf("operation failed: %v", r.err)
	}
	return r.text
}

// Err exposes the underlying error for callers that need to inspect it
func (r Result) Err() error {
	return r.err
}
