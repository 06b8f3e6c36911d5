package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentwire/codex-sdk-go/internal/rpc"
	"github.com/agentwire/codex-sdk-go/internal/tool"
)

// methodNotFound is the JSON-RPC error code for an unsupported method.
const methodNotFound = -32601

type toolCallParams struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// handleServerRequest answers an inbound request from the app server with
// a fixed, side-effect-bounded policy. There is no user interaction:
// approvals follow the configured auto-approve setting, tool calls either
// dispatch to a registered in-process tool or report unsupported, and
// everything else gets an in-protocol method-not-found error.
func (s *Session) handleServerRequest(ctx context.Context, msg *rpc.Message) {
	s.log.Debug("Received server request", "method", msg.Method, "id", rpc.IDKey(msg.ID))

	switch msg.Method {
	case "item/commandExecution/requestApproval", "item/fileChange/requestApproval":
		s.respondResult(ctx, msg.ID, map[string]any{"decision": s.approvalDecision()})

	case "item/tool/requestUserInput":
		// No interactive input is available in an embedded session.
		s.respondResult(ctx, msg.ID, map[string]any{"answers": map[string]any{}})

	case "item/tool/call":
		s.respondResult(ctx, msg.ID, s.callTool(ctx, msg.Params))

	case "account/chatgptAuthTokens/refresh":
		s.respondError(ctx, msg.ID, methodNotFound, "auth token refresh unsupported")

	default:
		s.respondError(ctx, msg.ID, methodNotFound, fmt.Sprintf("unsupported request: %s", msg.Method))
	}
}

func (s *Session) approvalDecision() string {
	if s.options != nil && s.options.AutoApprove {
		return "accept"
	}

	return "decline"
}

// callTool dispatches a tool call to a registered in-process tool, or
// reports the call unsupported when no tool matches.
func (s *Session) callTool(ctx context.Context, params json.RawMessage) map[string]any {
	var p toolCallParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			s.log.Debug("Malformed tool call params", "error", err)
		}
	}

	var registered bool

	if s.options != nil {
		_, registered = s.options.Tools[p.Tool]
	}

	if !registered {
		return map[string]any{"output": "<unsupported>", "success": false}
	}

	t := s.options.Tools[p.Tool]

	s.log.Debug("Dispatching tool call", "tool", p.Tool)

	result, err := t.Handler(ctx, p.Arguments)
	if err != nil {
		return map[string]any{"output": err.Error(), "success": false}
	}

	output, success := tool.FlattenResult(result)

	return map[string]any{"output": output, "success": success}
}

func (s *Session) respondResult(ctx context.Context, id json.RawMessage, result any) {
	msg, err := rpc.NewResult(id, result)
	if err != nil {
		s.log.Error("Failed to build response", "error", err)

		return
	}

	if err := s.transport.SendMessage(ctx, msg); err != nil {
		s.log.Error("Failed to send response", "error", err)
	}
}

func (s *Session) respondError(ctx context.Context, id json.RawMessage, code int, message string) {
	if err := s.transport.SendMessage(ctx, rpc.NewError(id, code, message)); err != nil {
		// Expected during shutdown; keep it quiet then.
		if ctx.Err() != nil {
			s.log.Debug("Could not send error response during shutdown", "error", err)

			return
		}

		s.log.Error("Failed to send error response", "error", err)
	}
}
