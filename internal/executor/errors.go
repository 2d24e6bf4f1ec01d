// internal/executor/errors.go
package executor

import "errors"

var (
	// ErrNoCandidateResolved means no candidate reference resolved to a
	// visible, stable element within its budget.
	ErrNoCandidateResolved = errors.New("no candidate reference resolved")

	// ErrPostConditionFailed means the action's side effect ran but its
	// required follow-on element never appeared.
	ErrPostConditionFailed = errors.New("expected follow-on element did not appear")

	// ErrNavigationFailed means a URL load did not complete within budget.
	// Recovery is still attempted, but it cannot change a URL, so this
	// usually escalates to an abort.
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrRunAborted is the terminal failure: recovery exhausted every
	// candidate for a failing action. No later checkpoint runs after it.
	ErrRunAborted = errors.New("run aborted")
)
