// Package codexsdk provides a Go SDK for the codex app server.
//
// The SDK spawns `codex app-server` as a child process, speaks
// newline-delimited JSON-RPC 2.0 over its stdin/stdout, and exposes a
// call-based API: start a thread, run a turn, get the result. Streamed
// agent output is aggregated per turn into a single TurnResult, and
// requests the app server makes of the client (approvals, tool calls) are
// answered automatically.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	client := codexsdk.NewClient(
//	    codexsdk.WithLogger(slog.Default()),
//	)
//	defer client.Close()
//
//	threadID, err := client.StartThread(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.RunTurn(ctx, threadID, "What is 2+2?", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	switch result.Status {
//	case codexsdk.TurnCompleted:
//	    fmt.Println(result.OutputText)
//	case codexsdk.TurnFailed:
//	    fmt.Println("turn failed:", result.Error)
//	}
//
// A failed turn is data, not an error: RunTurn returns an error only for
// timeouts, transport failures, and malformed responses. Inspect
// result.Status to detect agent-level failure.
//
// # In-Process Tools
//
// Tools registered with WithTool are advertised during the handshake and
// answer item/tool/call requests in-process:
//
//	echo := &codexsdk.Tool{
//	    Name:        "echo",
//	    Description: "Echo the input back",
//	    InputSchema: codexsdk.SimpleSchema(map[string]string{"text": "string"}),
//	    Handler: func(ctx context.Context, args map[string]any) (*codexsdk.CallToolResult, error) {
//	        text, _ := args["text"].(string)
//	        return codexsdk.TextResult(text), nil
//	    },
//	}
//
//	client := codexsdk.NewClient(codexsdk.WithTool(echo))
package codexsdk
