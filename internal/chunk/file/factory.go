package file

import (
	"errors"

	"nasstore/internal/chunk"
)

var ErrMissingDir = errors.New("file: params must include \"dir\"")

// NewFactory returns a chunk.Factory for the "local_fs" backend variant.
// Required param: "dir" -- the base directory to store chunk bodies under.
func NewFactory() chunk.Factory {
	return func(params map[string]string) (chunk.Store, error) {
		dir, ok := params["dir"]
		if !ok || dir == "" {
			return nil, ErrMissingDir
		}
		return Open(dir)
	}
}
