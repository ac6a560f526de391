package core

// error_messages.go maps technical errors to user messages with a support code.
//
// # Error Codes Reference
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Header missing: the input file has no header line
//	IMP002 - Malformed column: a header column cannot be decoded
//	IMP003 - File unreadable: the input file does not exist or cannot be opened
//	IMP004 - Flush failed: imported records could not be committed
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Column count: the line has a different number of fields than the header
//	REC002 - Missing identifier: the identifier column is absent or empty
//	REC003 - Unknown attribute: a column targets an attribute that does not exist
//	REC004 - Invalid value: the updater rejected a value
//	REC005 - Record timeout: processing one record took too long
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Invalid configuration: the run was rejected before reading the file
//	CFG002 - Invalid request      Patterns: "invalid request body"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key        SQLSTATE 23505, Patterns: "duplicate key", "violates unique"
//	DB002 - Connection refused   Patterns: "connection refused"
//	DB003 - Connection reset     Patterns: "connection reset"
//	DB004 - Deadlock             SQLSTATE 40P01, Patterns: "deadlock"
//	DB005 - Timeout              SQLSTATE 57014, Patterns: "timeout"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run cancelled
//	RUN002 - System busy: too many concurrent runs
//	RUN003 - Run not found
//	RUN004 - Rate limited        Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check application logs for the technical error
//
// Typed errors are matched first with errors.Is/errors.As, so wrapping never
// changes the code. Remaining errors are matched case-insensitively by
// substring; the first matching pattern wins.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgHeaderMissing = UserMessage{
		Message: "The input file has no header line",
		Action:  "Add a header line naming the columns",
		Code:    "IMP001",
	}
	msgMalformedColumn = UserMessage{
		Message: "A header column could not be decoded",
		Action:  "Use attribute, attribute-locale, attribute-scope or attribute-locale-scope",
		Code:    "IMP002",
	}
	msgFileUnreadable = UserMessage{
		Message: "The input file could not be opened",
		Action:  "Check the file path and permissions",
		Code:    "IMP003",
	}
	msgFlushFailed = UserMessage{
		Message: "Imported records could not be committed",
		Action:  "Please run the import again",
		Code:    "IMP004",
	}
	msgArity = UserMessage{
		Message: "The line has a different number of columns than the header",
		Action:  "Check the line for missing or extra delimiters",
		Code:    "REC001",
	}
	msgMissingIdentifier = UserMessage{
		Message: "The record has no identifier",
		Action:  "Fill in the identifier column",
		Code:    "REC002",
	}
	msgUnknownAttribute = UserMessage{
		Message: "The column targets an unknown attribute",
		Action:  "Check the column name against the attribute catalog",
		Code:    "REC003",
	}
	msgInvalidValue = UserMessage{
		Message: "A value was rejected",
		Action:  "Check the value format, locale and scope of the column",
		Code:    "REC004",
	}
	msgRecordTimeout = UserMessage{
		Message: "Processing the record timed out",
		Action:  "Please try again later",
		Code:    "REC005",
	}
	msgConfiguration = UserMessage{
		Message: "The import configuration is invalid",
		Action:  "Fix the listed configuration problems",
		Code:    "CFG001",
	}
	msgInvalidRequest = UserMessage{
		Message: "The request could not be read",
		Action:  "Send a JSON body with a filePath field",
		Code:    "CFG002",
	}
	msgDuplicateKey = UserMessage{
		Message: "A record with this identifier already exists",
		Action:  "Check the file for duplicate identifiers",
		Code:    "DB001",
	}
	msgDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB004",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Try again later",
		Code:    "DB005",
	}
	msgCancelled = UserMessage{
		Message: "The import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "RUN001",
	}
	msgTooManyRuns = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "RUN002",
	}
	msgRunNotFound = UserMessage{
		Message: "Import run not found",
		Action:  "The run may have expired. Please start a new import",
		Code:    "RUN003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// Order matters: more specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "duplicate key", msg: msgDuplicateKey},
	{pattern: "violates unique", msg: msgDuplicateKey},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{pattern: "deadlock", msg: msgDeadlock},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "invalid request body", msg: msgInvalidRequest},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RUN004",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(&RecordError{Line: 3, Err: ErrMissingIdentifier})
//	// msg.Code == "REC002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		mce *MalformedColumnError
		rae *RecordArityError
		uae *UnknownAttributeError
		ive *InvalidValueError
		cfg *ConfigurationError
		fe  *FatalError
	)

	switch {
	case errors.Is(err, ErrHeaderMissing):
		return msgHeaderMissing, true
	case errors.As(err, &mce):
		return msgMalformedColumn, true
	case errors.As(err, &rae):
		return msgArity, true
	case errors.Is(err, ErrMissingIdentifier):
		return msgMissingIdentifier, true
	case errors.As(err, &uae):
		return msgUnknownAttribute, true
	case errors.As(err, &ive):
		return msgInvalidValue, true
	case errors.As(err, &cfg):
		return msgConfiguration, true
	case errors.Is(err, ErrRunCancelled), errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, ErrTooManyRuns):
		return msgTooManyRuns, true
	case errors.Is(err, ErrRunNotFound):
		return msgRunNotFound, true
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return msgFileUnreadable, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return msgDuplicateKey, true
		case "40P01":
			return msgDeadlock, true
		case "57014":
			return msgTimeout, true
		}
	}

	var re *RecordError
	if errors.As(err, &re) && errors.Is(err, context.DeadlineExceeded) {
		return msgRecordTimeout, true
	}
	if errors.As(err, &fe) && fe.Op == "flush" {
		return msgFlushFailed, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
