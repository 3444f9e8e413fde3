package extractor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoOutput is returned when the tool exits without writing anything
	// to stdout.
	ErrNoOutput = errors.New("extraction tool produced no output")

	// ErrOutputMissing is returned when a staged download does not report a
	// usable output path, or the path it reports does not exist inside the
	// staging directory.
	ErrOutputMissing = errors.New("staged output file missing")
)

// ToolError describes a failed invocation of the extraction tool.
type ToolError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if details := e.Details(); details != "" {
		return fmt.Sprintf("%s failed (exit code %d): %s", e.Op, e.ExitCode, details)
	}

	return fmt.Sprintf("%s failed (exit code %d): %v", e.Op, e.ExitCode, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Details returns the most useful description of the failure for showing to
// a client. yt-dlp prefixes the interesting lines with 'ERROR:', so those are
// preferred over the full stderr output.
func (e *ToolError) Details() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return ""
	}

	var errorLines []string
	for _, line := range strings.Split(stderr, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "ERROR:") {
			errorLines = append(errorLines, strings.TrimSpace(line))
		}
	}
	if len(errorLines) > 0 {
		return strings.Join(errorLines, "\n")
	}

	return stderr
}

// Details extracts a client-facing description from any error returned by
// this package.
func Details(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Details()
	}

	return err.Error()
}
