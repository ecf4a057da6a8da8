package core

// Exit codes for the application.
// Signal-based exits are 128 + signal number.
const (
	// ExitCodeSuccess indicates clean shutdown (exit code 0)
	ExitCodeSuccess = 0

	// ExitCodeError indicates a runtime failure (exit code 1)
	ExitCodeError = 1

	// ExitCodeConfig indicates the process could not start because of its configuration
	ExitCodeConfig = 2

	// ExitCodeTransferFailed indicates a style transfer request returned failure
	ExitCodeTransferFailed = 3

	// ExitCodeSIGINT indicates termination due to SIGINT (Ctrl+C)
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM indicates termination due to SIGTERM
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeTransferFailed:
		return "transfer failed"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// ExitCodeFor maps an error to the exit code main should return.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case IsConfigError(err):
		return ExitCodeConfig
	default:
		return ExitCodeError
	}
}
