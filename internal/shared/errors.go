package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Resource errors are fatal to a task
	ErrUnsupportedResource = fmt.Errorf("unsupported audio resource")
	ErrUnreadableResource  = fmt.Errorf("unreadable audio resource")

	// Plugin errors
	ErrInvalidPlugin   = fmt.Errorf("invalid plugin descriptor")
	ErrDuplicatePlugin = fmt.Errorf("plugin already registered")
	ErrPluginNotFound  = fmt.Errorf("plugin not found")
	ErrInvalidParam    = fmt.Errorf("invalid plugin parameter")

	// Task errors
	ErrTaskNotFound   = fmt.Errorf("task not found")
	ErrTaskNotRunning = fmt.Errorf("task not running")

	// Archive errors
	ErrReportNotFound = fmt.Errorf("report not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrServiceDown     = fmt.Errorf("service unavailable")
)
