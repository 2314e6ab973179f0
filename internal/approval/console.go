package approval

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ConsoleRequester prompts the operator on the local terminal. It is the
// default requester when warden runs interactively and no gateway
// session is attached.
type ConsoleRequester struct{}

// RequestApproval implements Requester with an interactive confirm prompt.
func (ConsoleRequester) RequestApproval(ctx context.Context, req Request) (Response, error) {
	args := string(req.Arguments)
	if len(args) > 400 {
		args = args[:400] + "..."
	}

	var approved bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Allow tool %q to run?", req.ToolName)).
			Description(fmt.Sprintf("%s\n\nArguments:\n%s", req.Description, args)).
			Affirmative("Approve").
			Negative("Deny").
			Value(&approved),
	))

	if err := form.RunWithContext(ctx); err != nil {
		return Response{}, err
	}

	if !approved {
		return Response{Approved: false, Reason: "denied by operator"}, nil
	}
	return Response{Approved: true}, nil
}

// Interface guard.
var _ Requester = ConsoleRequester{}
