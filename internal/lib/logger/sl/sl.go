package sl

import (
	"log/slog"
)

// Err creates a slog.Attr with the given error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// EmployeeID creates a slog.Attr for the employee identifier.
func EmployeeID(id int64) slog.Attr {
	return slog.Int64("employee_id", id)
}
