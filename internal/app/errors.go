package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Application errors.
var (
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("application is shut down")

	// ErrNoBuffer indicates a slot index that does not exist.
	ErrNoBuffer = errors.New("no such buffer")

	// ErrNoPath indicates an untitled buffer was saved without a name.
	ErrNoPath = errors.New("buffer has no file name")

	// ErrReadOnly indicates the buffer cannot be modified or saved.
	ErrReadOnly = errors.New("buffer is read-only")

	// ErrUnsavedChanges indicates there are unsaved changes.
	ErrUnsavedChanges = errors.New("unsaved changes")

	// ErrNoRoom indicates every slot is in use and the current buffer
	// cannot be closed to make room.
	ErrNoRoom = errors.New("no free buffer slot")

	// ErrBusy indicates a file job is pending for the buffer.
	ErrBusy = errors.New("buffer has a file operation in progress")

	// ErrAlreadyOpen indicates another buffer already holds the file.
	ErrAlreadyOpen = errors.New("file is open in another buffer")
)

// OperationError ties a failure to the buffer operation and file it
// concerned. Restore and save-all failures carry a Context naming the outer
// operation.
type OperationError struct {
	Op      string
	Target  string
	Context string
	Err     error
}

// NewOperationError wraps err as a failure of op on target.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

// WithContext sets Context and returns e. A nil e stays nil.
func (e *OperationError) WithContext(ctx string) *OperationError {
	if e != nil {
		e.Context = ctx
	}
	return e
}

// Error renders "op target (context): cause", omitting empty parts.
func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Target != "" {
		b.WriteByte(' ')
		b.WriteString(e.Target)
	}
	if e.Context != "" {
		fmt.Fprintf(&b, " (%s)", e.Context)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorList gathers the failures of a batch such as SaveAll or Shutdown.
// It is used from the control goroutine only.
type ErrorList struct {
	errs []error
}

// NewErrorList returns an empty list.
func NewErrorList() *ErrorList {
	return &ErrorList{}
}

// Add appends err unless it is nil.
func (l *ErrorList) Add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

// HasErrors reports whether anything was added.
func (l *ErrorList) HasErrors() bool {
	return l.Len() > 0
}

// Len returns the number of collected errors.
func (l *ErrorList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.errs)
}

// Errors returns a copy of the collected errors.
func (l *ErrorList) Errors() []error {
	if l.Len() == 0 {
		return nil
	}
	return slices.Clone(l.errs)
}

// Error reports a single error as is and summarises several by the first.
func (l *ErrorList) Error() string {
	switch l.Len() {
	case 0:
		return ""
	case 1:
		return l.errs[0].Error()
	}
	return fmt.Sprintf("%d errors: first: %v", len(l.errs), l.errs[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	return l.Errors()
}

// AsError returns nil for an empty list and the list otherwise.
func (l *ErrorList) AsError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}
