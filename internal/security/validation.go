package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Bounds applied to untrusted payloads: inbound gateway frames and the
// tool arguments the model produces.
const (
	DefaultMaxMessageSize = 1 << 20
	DefaultMaxJSONDepth   = 32
)

var (
	ErrMessageTooLarge = errors.New("payload exceeds size limit")
	ErrJSONTooDeep     = errors.New("JSON nested beyond depth limit")
	ErrInvalidJSON     = errors.New("invalid JSON")
)

// ValidateMessageSize rejects payloads larger than limit bytes. A
// non-positive limit falls back to DefaultMaxMessageSize.
func ValidateMessageSize(payload []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxMessageSize
	}
	if len(payload) > limit {
		return fmt.Errorf("%w: %d bytes over %d", ErrMessageTooLarge, len(payload), limit)
	}
	return nil
}

// ValidateJSONDepth walks the token stream and rejects payloads whose
// object or array nesting exceeds limit, before any of it is
// unmarshalled into real structures. A non-positive limit falls back to
// DefaultMaxJSONDepth. Empty payloads pass.
func ValidateJSONDepth(payload []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(payload) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	var depth int
	for {
		tok, err := dec.Token()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > limit {
				return fmt.Errorf("%w: level %d over %d", ErrJSONTooDeep, depth, limit)
			}
		case '}', ']':
			depth--
		}
	}
}
