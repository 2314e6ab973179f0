package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/wardenproj/warden/internal/provider"
)

// errAuth marks 401/403 responses. Not retryable; a bad key stays bad.
var errAuth = errors.New("openai: authentication failed")

// errorFromStatus classifies a non-2xx response into the provider's
// sentinel vocabulary so the health tracker and the agent loop can
// react without knowing OpenAI status codes.
func errorFromStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := string(body)
	var we wireError
	if json.Unmarshal(body, &we) == nil && we.Error.Message != "" {
		msg = we.Error.Message
	}

	switch {
	case status == 429:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %s", errAuth, msg)
	case status == 400 && strings.Contains(strings.ToLower(msg), "context_length"):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	case status >= 500:
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, msg)
	}
	return fmt.Errorf("openai: HTTP %d: %s", status, msg)
}

// errorFromTransport wraps network failures as ErrProviderDown so they
// count against provider health. Context errors pass through; a
// cancelled turn is not a sick upstream.
func errorFromTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("openai: %w", err)
}
