package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedEngine = errors.New("unsupported database engine")
	ErrRemoteDisabled    = errors.New("remote storage is not configured")
	ErrInsufficientSpace = errors.New("insufficient free disk space")
)

type (
	// DumpFailedError is returned when the dump utility exits non-zero or is killed
	DumpFailedError struct {
		Engine   Engine
		Database string
		Stderr   string
		Err      error
	}

	UploadFailedError struct {
		Key   string
		Cause error
	}

	ScheduleValidationError struct {
		Field  string
		Reason string
	}

	NotFoundError struct {
		Kind string
		ID   string
	}

	ConnectionFailedError struct {
		Host  string
		Cause error
	}

	InvalidTransitionError struct {
		From, To BackupStatus
	}

	// InvalidRequestError reports a request that refers to existing objects in a way that makes no sense
	InvalidRequestError struct {
		Reason string
	}

	// ConflictError reports an object that already exists
	ConflictError struct {
		Reason string
	}

	// NotReadyError is returned when a backup is asked for its file before it has completed
	NotReadyError struct {
		ID     string
		Status BackupStatus
	}
)

func (e *DumpFailedError) Error() string {
	msg := fmt.Sprintf("%s dump of %q failed", e.Engine, e.Database)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *DumpFailedError) Unwrap() error {
	return e.Err
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Key, e.Cause)
}

func (e *UploadFailedError) Unwrap() error {
	return e.Cause
}

func (e *ScheduleValidationError) Error() string {
	if e.Reason == "" {
		return "invalid schedule field: " + e.Field
	}
	return fmt.Sprintf("invalid schedule field %s: %s", e.Field, e.Reason)
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.Host, e.Cause)
}

func (e *ConnectionFailedError) Unwrap() error {
	return e.Cause
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("backup status cannot move from %s to %s", e.From, e.To)
}

func (e *InvalidRequestError) Error() string {
	return e.Reason
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("backup %s is %s and has no file to download", e.ID, e.Status)
}

func NewNotFoundError(kind string, id fmt.Stringer) error {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

func NewScheduleValidationError(field, reason string) error {
	return &ScheduleValidationError{Field: field, Reason: reason}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
