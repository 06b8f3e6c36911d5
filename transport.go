package codexsdk

import "github.com/agentwire/codex-sdk-go/internal/config"

// Transport defines the interface for app server communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation spawns `codex app-server` as a subprocess.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport
