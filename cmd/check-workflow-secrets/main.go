package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ci-shared/workflow-secrets/pkg/cli"
	"github.com/ci-shared/workflow-secrets/pkg/console"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
)

var mainLog = logger.New("main")

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewCheckCommand()
	cmd.Version = version
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code := cli.ExitCode(err)
	mainLog.Printf("Exiting: code=%d, err=%v", code, err)

	var exitErr *cli.ExitError
	if err != nil && (!errors.As(err, &exitErr) || exitErr.Err != nil) {
		fmt.Fprintln(stderr, console.FormatErrorMessage(err.Error()))
		if code == cli.ExitUsage {
			fmt.Fprintln(stderr, "Run 'check-workflow-secrets --help' for usage.")
		}
	}
	return code
}
