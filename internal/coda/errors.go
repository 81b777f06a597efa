package coda

import "fmt"

// MissingFileError reports a required per-frame file that does not exist.
// It unwraps to the underlying filesystem error, so
// errors.Is(err, fs.ErrNotExist) holds.
type MissingFileError struct {
	FrameID  string
	Resource string
	Path     string
	Err      error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("frame %s: missing %s file %s", e.FrameID, e.Resource, e.Path)
}

func (e *MissingFileError) Unwrap() error { return e.Err }

// SchemaMismatchError reports annotation arrays whose lengths diverge.
type SchemaMismatchError struct {
	FrameID string
	Field   string
	Got     int
	Want    int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("frame %s: annotation field %s has length %d, want %d", e.FrameID, e.Field, e.Got, e.Want)
}
