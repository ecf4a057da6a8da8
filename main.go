package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"go_styletransfer/core"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewCLI()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return core.ExitCodeSuccess
	}
	color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// transferError marks a failed style transfer so main exits with
// ExitCodeTransferFailed rather than the generic error code.
type transferError struct {
	err error
}

func (e *transferError) Error() string {
	return fmt.Sprintf("style transfer failed: %v", e.err)
}

func (e *transferError) Unwrap() error {
	return e.err
}

func exitCode(err error) int {
	var te *transferError
	if errors.As(err, &te) {
		return core.ExitCodeTransferFailed
	}
	return core.ExitCodeFor(err)
}
