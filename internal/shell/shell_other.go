//go:build !windows

package shell

import (
	"context"
	"os/exec"

	"al.essio.dev/pkg/shellescape"
)

func shellCommand(ctx context.Context, script string) *exec.Cmd {
	return exec.CommandContext(ctx, "/bin/sh", "-c", script)
}

func foldKey(key string) string {
	return key
}

func quoteCommand(args []string) string {
	return shellescape.QuoteCommand(args)
}
