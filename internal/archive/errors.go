package archive

import "errors"

var (
	// ErrNotFound means no registered provider matches a file.
	ErrNotFound = errors.New("no archiver for file")

	// ErrNotSupported means the provider lacks the requested capability.
	ErrNotSupported = errors.New("operation not supported")

	// ErrProcessing means a provider call failed structurally, e.g. the
	// archive is corrupted or a tool's list output did not parse.
	ErrProcessing = errors.New("archive processing failed")

	// ErrExists means a repack target already exists.
	ErrExists = errors.New("target already exists")
)

// ExecError reports an external tool that exited non-zero. It carries the
// captured standard error text.
type ExecError struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return e.Cmd + ": " + e.Err.Error() + ": " + e.Stderr
	}
	return e.Cmd + ": " + e.Err.Error()
}

func (e *ExecError) Unwrap() error { return e.Err }
