package docstore

// NotFoundError is a user-facing "record does not exist" error. It matches
// ErrNotFound with errors.Is.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound returns a NotFoundError carrying msg.
func NotFound(msg string) error {
	return &NotFoundError{Message: msg}
}

// ValidationError reports input a store refused to persist.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid returns a ValidationError for field.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
