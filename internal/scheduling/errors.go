package scheduling

import (
	"github.com/cockroachdb/errors"
)

// Business errors. All of them are terminal for a request: nothing was
// written when one is returned. Callers match them with errors.Is; the
// human-readable message travels as a hint (see UserMessage).
var (
	ErrInvalidFormat       = errors.New("invalid format")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrApplicationNotFound = errors.New("application not found")
	ErrNotFound            = errors.New("interview slot not found")
	ErrSlotConflict        = errors.New("interview slot already occupied")
	ErrSlotCancelled       = errors.New("interview slot is cancelled")
)

func invalidFormat(cause error) error {
	return errors.WithHint(errors.WithSecondaryError(errors.WithStack(ErrInvalidFormat), cause), cause.Error())
}

func invalidStatus(raw string) error {
	return errors.WithHintf(errors.WithStack(ErrInvalidStatus),
		"invalid status %q: expected scheduled, completed or cancelled", raw)
}

func notFound(id string) error {
	return errors.WithHintf(errors.WithStack(ErrNotFound), "interview slot %s not found", id)
}

func applicationNotFound(id string) error {
	return errors.WithHintf(errors.WithStack(ErrApplicationNotFound), "application %s not found", id)
}

func slotConflict(what string) error {
	return errors.WithHintf(errors.WithStack(ErrSlotConflict), "interview slot %s is already occupied", what)
}

func slotCancelled(id string) error {
	return errors.WithHintf(errors.WithStack(ErrSlotCancelled), "interview slot %s is cancelled", id)
}

// UserMessage returns the message that may be shown to API clients for err.
// Errors outside the business taxonomy yield a generic message.
func UserMessage(err error) string {
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		return hints[0]
	}
	for _, known := range []error{
		ErrInvalidFormat, ErrInvalidStatus, ErrInvalidTransition, ErrApplicationNotFound,
		ErrNotFound, ErrSlotConflict, ErrSlotCancelled,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal server error"
}
