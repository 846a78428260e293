package colorize

import (
	"errors"
	"fmt"
)

// Exit codes of the colorize command.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitUsage           = 2
	ExitMissingArtifact = 3
	ExitUnreadableImage = 4
)

// MissingArtifactError reports a Model Bundle file that does not exist.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// UnreadableImageError reports an input that could not be decoded.
type UnreadableImageError struct {
	Path string
}

func (e *UnreadableImageError) Error() string {
	return fmt.Sprintf("could not read image at path %s", e.Path)
}

// ExitCode maps an error from this package to the command's exit status.
func ExitCode(err error) int {
	var missing *MissingArtifactError
	var unreadable *UnreadableImageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &missing):
		return ExitMissingArtifact
	case errors.As(err, &unreadable):
		return ExitUnreadableImage
	default:
		return ExitFailure
	}
}
