package playback

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrInvalidSpec reports a playback request that cannot start.
var ErrInvalidSpec = errors.New("invalid playback spec")

// ValidateSource checks that path names a readable regular file.
func ValidateSource(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: source path is empty", ErrInvalidSpec)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidSpec, path)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return fmt.Errorf("%w: %s is not readable: %v", ErrInvalidSpec, path, err)
	}
	return nil
}
