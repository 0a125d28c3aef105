package commands

import (
	"fmt"
	"strconv"
	"strings"
)

type Type string

const (
	TypeComplete   Type = "complete"
	TypeSnooze     Type = "snooze"
	TypeReschedule Type = "reschedule"
	TypeArchive    Type = "archive"
	TypeShow       Type = "show"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
	ErrCodeNotFound        ErrorCode = "not_found"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type CompleteArgs struct {
	ProcedureID string
	StepID      string
}

// SnoozeArgs.Minutes is zero when the caller should apply its default.
type SnoozeArgs struct {
	ProcedureID string
	StepID      string
	Minutes     int
}

type RescheduleArgs struct {
	ProcedureID string
	When        string
}

type ArchiveArgs struct {
	ProcedureID string
}

// ShowArgs.ProcedureID is empty for "show all".
type ShowArgs struct {
	ProcedureID string
}

type Command struct {
	Type       Type
	Raw        string
	Complete   *CompleteArgs
	Snooze     *SnoozeArgs
	Reschedule *RescheduleArgs
	Archive    *ArchiveArgs
	Show       *ShowArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeComplete, "done":
		return parseComplete(input, args)
	case TypeSnooze:
		return parseSnooze(input, args)
	case TypeReschedule:
		return parseReschedule(input, args)
	case TypeArchive:
		return parseArchive(input, args)
	case TypeShow, "ls":
		return parseShow(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseComplete(raw string, args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "complete requires a procedure and a step"}
	}
	return Command{Type: TypeComplete, Raw: raw, Complete: &CompleteArgs{ProcedureID: args[0], StepID: args[1]}}, nil
}

func parseSnooze(raw string, args []string) (Command, error) {
	if len(args) < 2 || len(args) > 3 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "snooze requires a procedure, a step and optional minutes"}
	}
	out := &SnoozeArgs{ProcedureID: args[0], StepID: args[1]}
	if len(args) == 3 {
		minutes, err := parseMinutes(args[2])
		if err != nil {
			return Command{}, err
		}
		out.Minutes = minutes
	}
	return Command{Type: TypeSnooze, Raw: raw, Snooze: out}, nil
}

func parseMinutes(arg string) (int, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.ToLower(arg), "min"), "m")
	minutes, err := strconv.Atoi(trimmed)
	if err != nil || minutes <= 0 {
		return 0, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid snooze minutes: %s", arg)}
	}
	return minutes, nil
}

func parseReschedule(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "reschedule requires a procedure and a start time"}
	}
	return Command{Type: TypeReschedule, Raw: raw, Reschedule: &RescheduleArgs{ProcedureID: args[0], When: strings.Join(args[1:], " ")}}, nil
}

func parseArchive(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "archive requires a procedure"}
	}
	return Command{Type: TypeArchive, Raw: raw, Archive: &ArchiveArgs{ProcedureID: args[0]}}, nil
}

func parseShow(raw string, args []string) (Command, error) {
	if len(args) > 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "show takes at most one procedure"}
	}
	out := &ShowArgs{}
	if len(args) == 1 {
		out.ProcedureID = args[0]
	}
	return Command{Type: TypeShow, Raw: raw, Show: out}, nil
}
