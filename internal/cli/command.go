package cli

import (
	"os"

	"github.com/agentwire/codex-sdk-go/internal/config"
)

// BuildArgs constructs the argument list for the app server subcommand.
func BuildArgs(_ *config.Options) []string {
	return []string{"app-server"}
}

// BuildEnvironment constructs the environment for the child process.
// The inherited environment comes first so user-provided entries override it.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	env = append(env, "CODEX_SDK_ENTRYPOINT=sdk-go")
	env = append(env, options.Env...)

	return env
}
