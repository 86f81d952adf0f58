package app

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{"nil error", nil, ""},
		{"op only", &OperationError{Op: "save"}, "save"},
		{"op and target", &OperationError{Op: "open", Target: "/path/file.txt"}, "open /path/file.txt"},
		{
			"op, target, and context",
			&OperationError{Op: "open", Target: "/path/file.txt", Context: "restore"},
			"open /path/file.txt (restore)",
		},
		{
			"full error chain",
			&OperationError{Op: "store", Target: "/path/file.txt", Context: "save all", Err: errors.New("disk full")},
			"store /path/file.txt (save all): disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	err := NewOperationError("load", "/x", fs.ErrNotExist).WithContext("session")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "session", err.Context)

	var nilErr *OperationError
	assert.Nil(t, nilErr.WithContext("x"))
	assert.NoError(t, nilErr.Unwrap())
}

func TestErrorList(t *testing.T) {
	list := NewErrorList()
	list.Add(nil)
	assert.False(t, list.HasErrors())
	assert.NoError(t, list.AsError())
	assert.Equal(t, "", list.Error())

	list.Add(NewOperationError("save", "/a", ErrReadOnly))
	assert.Equal(t, "save /a: buffer is read-only", list.Error())

	list.Add(ErrNoPath)
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, "2 errors: first: save /a: buffer is read-only", list.Error())

	err := list.AsError()
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, err, ErrNoPath)
	assert.NotErrorIs(t, err, ErrNoRoom)

	errs := list.Errors()
	errs[0] = nil
	assert.NotNil(t, list.Errors()[0], "Errors returns a copy")

	var nilList *ErrorList
	assert.Equal(t, 0, nilList.Len())
	assert.Nil(t, nilList.Errors())
}
