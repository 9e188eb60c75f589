package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI formats an error for terminal display.
// Plain errors are shown as-is; DocErrors add the hint and code lines.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var de *DocError
	if !stderrors.As(err, &de) {
		return fmt.Sprintf("Error: %s\n", err.Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", de.Message))
	if de.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", de.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", de.Code))
	return sb.String()
}

// LogAttrs returns slog attributes describing err for structured logging.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var de *DocError
	if !stderrors.As(err, &de) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", de.Code),
		slog.String("message", de.Message),
		slog.String("category", string(de.Category)),
		slog.String("severity", string(de.Severity)),
	}
	if de.Cause != nil {
		attrs = append(attrs, slog.String("cause", de.Cause.Error()))
	}
	for k, v := range de.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return attrs
}
