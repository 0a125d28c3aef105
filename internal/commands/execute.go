package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Complete   func(CompleteArgs) (Result, error)
	Snooze     func(SnoozeArgs) (Result, error)
	Reschedule func(RescheduleArgs) (Result, error)
	Archive    func(ArchiveArgs) (Result, error)
	Show       func(ShowArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeComplete:
		if handlers.Complete == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "complete handler not configured"}
		}
		return handlers.Complete(*cmd.Complete)
	case TypeSnooze:
		if handlers.Snooze == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "snooze handler not configured"}
		}
		return handlers.Snooze(*cmd.Snooze)
	case TypeReschedule:
		if handlers.Reschedule == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "reschedule handler not configured"}
		}
		return handlers.Reschedule(*cmd.Reschedule)
	case TypeArchive:
		if handlers.Archive == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "archive handler not configured"}
		}
		return handlers.Archive(*cmd.Archive)
	case TypeShow:
		if handlers.Show == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "show handler not configured"}
		}
		return handlers.Show(*cmd.Show)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

// NotFound reports a missing procedure or step.
func NotFound(procedureID, stepID string) error {
	if stepID == "" {
		return &CommandError{Code: ErrCodeNotFound, Message: fmt.Sprintf("procedure %s not found", procedureID)}
	}
	return &CommandError{Code: ErrCodeNotFound, Message: fmt.Sprintf("step %s of procedure %s not found", stepID, procedureID)}
}
