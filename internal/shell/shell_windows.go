//go:build windows

package shell

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// shellCommand runs script through cmd.exe. The command line is set raw
// because cmd.exe does not follow the argv quoting rules exec applies.
func shellCommand(ctx context.Context, script string) *exec.Cmd {
	comspec := os.Getenv("COMSPEC")
	if comspec == "" {
		comspec = "cmd.exe"
	}
	cmd := exec.CommandContext(ctx, comspec)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: syscall.EscapeArg(comspec) + ` /d /s /c "` + script + `"`,
	}
	return cmd
}

// Environment variable names are case-insensitive on Windows.
func foldKey(key string) string {
	return strings.ToUpper(key)
}

// quoteCommand quotes args with the rules CommandLineToArgvW reverses,
// which is what cmd.exe hands to the programs it starts.
func quoteCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = syscall.EscapeArg(a)
	}
	return strings.Join(quoted, " ")
}
