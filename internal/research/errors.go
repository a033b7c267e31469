package research

import (
	"errors"
	"fmt"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
)

var (
	ErrNotFound            = errors.New("idea not found")
	ErrAlreadyRunning      = errors.New("research is already in progress for this idea")
	ErrInsufficientContent = errors.New("insufficient content")
	ErrPersistence         = errors.New("persistence failure")
)

// InsufficientContentError carries the threshold the content fell short of.
type InsufficientContentError struct {
	Words   int
	Minimum int
}

func (e *InsufficientContentError) Error() string {
	return fmt.Sprintf("please add more content to your idea before researching (at least %d words, found %d)", e.Minimum, e.Words)
}

func (e *InsufficientContentError) Is(target error) bool { return target == ErrInsufficientContent }

// ProviderError is a failed call to a research technique. It is recorded on
// the worker's own progress row and never aborts sibling workers.
type ProviderError struct {
	WorkerType ideas.WorkerType
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.WorkerType, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DispatchError is a failed enqueue. The matching progress row stays PENDING.
type DispatchError struct {
	WorkerType ideas.WorkerType
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.WorkerType, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
