// Package protocol implements the session core for the codex app server.
//
// The Session correlates outgoing JSON-RPC requests to their responses,
// aggregates the notification stream of each in-flight turn into a single
// terminal result, and answers requests the app server makes of the client
// (approvals, tool calls) with a fixed policy.
//
// A single read loop drains the transport and routes each decoded message
// by its wire shape: responses resolve entries in the pending request
// table, notifications drive the turn registry, and inbound requests are
// answered by the server-request handler. Callers of the public operations
// suspend on one-shot completion channels until their matching response or
// terminal turn event arrives; independent callers never block one another.
//
// Example usage:
//
//	transport := subprocess.NewAppServerTransport(log, options)
//	transport.Start(ctx)
//
//	session := protocol.NewSession(log, transport, options)
//	session.Start(ctx)
//	session.Initialize(ctx)
//
//	threadID, err := session.StartThread(ctx, &config.ThreadConfig{})
//	result, err := session.RunTurn(ctx, threadID, "hello", &config.TurnOptions{})
package protocol
