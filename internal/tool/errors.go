package tool

import "errors"

// Registration and lookup failures. Callers branch on these with
// errors.Is; the registry wraps them with the offending name.
var (
	ErrToolNotFound  = errors.New("tool: not found")
	ErrEmptyToolName = errors.New("tool: name must not be empty")
	ErrDuplicateTool = errors.New("tool: already registered")
)
