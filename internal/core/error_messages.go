package core

// error_messages.go maps technical errors to user-facing messages with a
// code that users can quote to support.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Patterns: "file too large", "request body too large"
//	FILE002 - Unsupported file type   Patterns: "unsupported file type"
//	FILE003 - Empty file              Patterns: "empty file"
//	FILE004 - No data rows            Patterns: "no data rows"
//	FILE005 - No file                 Patterns: "no file provided"
//	FILE006 - Undecodable text        Patterns: "unable to decode", "encoding error"
//	FILE007 - Unreadable workbook     Patterns: "workbook", "worksheet"
//	FILE008 - Malformed rows          Patterns: "invalid csv"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Column not found         Patterns: "available columns"
//	VAL002 - Column name missing      Patterns: "column name is required"
//	VAL003 - Invalid batch size       Patterns: "batch size"
//
// # Split Errors (SPL001-SPL099)
//
//	SPL001 - Rendering failed         Patterns: "unable to render"
//	SPL002 - Archive write failed     Patterns: "unable to write archive"
//	SPL003 - Archive publish failed   Patterns: "unable to publish archive"
//	SPL004 - Job crashed              Patterns: "split job panicked"
//
// # Task Errors (TASK001-TASK099)
//
//	TASK001 - Task not found          Patterns: "task not found"
//	TASK002 - Task not finished       Patterns: "task not completed"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy              Patterns: "too many concurrent uploads"
//	UPL002 - Request cancelled        Patterns: "context canceled"
//	UPL003 - Request timeout          Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests       Patterns: "rate limit"
//
// Patterns match case-insensitively with strings.Contains and the first match
// wins, so specific patterns sit above general ones. Anything unmatched is
// ERR000.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks before uploading",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks before uploading",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv, .xlsx, .xls or .txt file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header row and data rows",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has a header but no data rows",
			Action:  "Add at least one data row below the header",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Select a file to split",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unable to decode",
		msg: UserMessage{
			Message: "The file's character encoding could not be recognized",
			Action:  "Save the file as UTF-8 and upload it again",
			Code:    "FILE006",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8 and upload it again",
			Code:    "FILE006",
		},
	},
	{
		pattern: "workbook",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Open the file in a spreadsheet program and save it again",
			Code:    "FILE007",
		},
	},
	{
		pattern: "worksheet",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Open the file in a spreadsheet program and save it again",
			Code:    "FILE007",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "Some rows have more fields than the header",
			Action:  "Ensure every row has the same number of columns as the header",
			Code:    "FILE008",
		},
	},

	// =========================================================================
	// Validation Errors
	// =========================================================================
	{
		pattern: "available columns",
		msg: UserMessage{
			Message: "The selected column was not found in the file",
			Action:  "Choose one of the columns listed in the error details",
			Code:    "VAL001",
		},
	},
	{
		pattern: "column name is required",
		msg: UserMessage{
			Message: "No split column was given",
			Action:  "Choose the column to split by",
			Code:    "VAL002",
		},
	},
	{
		pattern: "batch size",
		msg: UserMessage{
			Message: "Invalid batch size",
			Action:  "Use a whole number greater than zero, or leave it blank",
			Code:    "VAL003",
		},
	},

	// =========================================================================
	// Split Errors
	// =========================================================================
	{
		pattern: "unable to render",
		msg: UserMessage{
			Message: "A group could not be written in the original format",
			Action:  "Check the file for unusual characters and try again",
			Code:    "SPL001",
		},
	},
	{
		pattern: "unable to write archive",
		msg: UserMessage{
			Message: "The result archive could not be created",
			Action:  "Please try again in a few moments",
			Code:    "SPL002",
		},
	},
	{
		pattern: "unable to publish archive",
		msg: UserMessage{
			Message: "The result archive could not be saved",
			Action:  "Please try again in a few moments",
			Code:    "SPL003",
		},
	},
	{
		pattern: "split job panicked",
		msg: UserMessage{
			Message: "Processing stopped unexpectedly",
			Action:  "Please try again or contact support",
			Code:    "SPL004",
		},
	},

	// =========================================================================
	// Task Errors
	// =========================================================================
	{
		pattern: "task not found",
		msg: UserMessage{
			Message: "Task not found",
			Action:  "The task may have expired. Upload the file again",
			Code:    "TASK001",
		},
	},
	{
		pattern: "task not completed",
		msg: UserMessage{
			Message: "The task has not finished",
			Action:  "Wait for the task to complete before downloading",
			Code:    "TASK002",
		},
	},

	// =========================================================================
	// Upload Errors
	// =========================================================================
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL003",
		},
	},

	// =========================================================================
	// Rate Limiting
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Unmatched errors map to ERR000.
//
// Example:
//
//	msg := MapError(errors.New(`column "dept" not found; available columns: ["a"]`))
//	// msg.Code == "VAL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
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

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
