package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/tools"
)

// Decision is the result of a permission Policy evaluation.
type Decision int

const (
	Allow Decision = iota
	Ask
	Deny
)

// Policy decides whether a tool call is permitted. reason accompanies Ask
// and Deny decisions.
type Policy func(name string, input json.RawMessage, tc *model.ToolContext) (decision Decision, reason string)

// PermissionChecker delegates to policy before invoking next. Deny becomes
// a PermissionDenied error carrying reason; Ask is converted into
// PermissionDenied with text "requires confirmation: <reason>" unless a
// confirmation channel is supplied, which is not part of the core (§4.C.2).
func PermissionChecker(policy Policy) tools.Middleware {
	return func(name string, input json.RawMessage, tc *model.ToolContext, next tools.Next) (model.ToolOutput, error) {
		decision, reason := policy(name, input, tc)
		switch decision {
		case Deny:
			return model.ToolOutput{}, tools.PermissionDenied(reason)
		case Ask:
			return model.ToolOutput{}, tools.PermissionDenied(fmt.Sprintf("requires confirmation: %s", reason))
		default:
			return next(name, input, tc)
		}
	}
}
