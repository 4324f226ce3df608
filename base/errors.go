package base

import "errors"

// Domain errors surfaced at package boundaries. Tier 1 in the error
// model: structural, total, leave the tree untouched.
var (
	ErrNotFound               = errors.New("path not found")
	ErrNotADirectory          = errors.New("not a directory")
	ErrNotAFile               = errors.New("not a file")
	ErrDirectoryAlreadyExists = errors.New("directory already exists")
	ErrFileAlreadyExists      = errors.New("file already exists")
	ErrInvalidPath            = errors.New("invalid path")
)

// Tier 2: integrity errors. Never retried; indistinguishable from
// corruption by design (failed header decrypt means no ratchet key,
// failed body decrypt means no content key).
var (
	ErrMissingNodeType    = errors.New("missing node type")
	ErrUnexpectedNodeType = errors.New("unexpected node type")
	ErrDecrypt            = errors.New("decryption failed")
)
