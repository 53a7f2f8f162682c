package actions

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Payload is a means of locating the bytes behind a payload-bearing
// action. Implementations must be reusable: Open may be called more
// than once.
type Payload interface {
	Open() (io.ReadCloser, error)
	Size() (int64, error)
}

// FilePayload sources payload bytes from a concrete filesystem path.
// Unlike bundle-sourced payloads it can report a modification time.
type FilePayload struct {
	Path string
}

func (p *FilePayload) Open() (io.ReadCloser, error) {
	return os.Open(p.Path)
}

func (p *FilePayload) Size() (int64, error) {
	fi, err := os.Stat(p.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (p *FilePayload) ModTime() (time.Time, error) {
	fi, err := os.Stat(p.Path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// UnresolvedPayloadError reports that an action's payload could not
// be pinned to exactly one readable byte source.
type UnresolvedPayloadError struct {
	Action     string
	Path       string
	Candidates []string
}

func (e *UnresolvedPayloadError) Error() string {
	if len(e.Candidates) > 1 {
		return fmt.Sprintf(
			"ambiguous payload for %s action %q: found in %d locations",
			e.Action, e.Path, len(e.Candidates))
	}
	return fmt.Sprintf("unable to locate payload for %s action %q", e.Action, e.Path)
}
