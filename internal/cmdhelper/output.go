// Package cmdhelper holds small output and CLI-arg helpers shared by the
// rockslide command.
package cmdhelper

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"
)

// Fprintf is a wrapper around fmt.Fprintf to suppress the error check.
func Fprintf(w io.Writer, format string, args ...any) {
	if format[len(format)-1] != '\n' {
		format += "\n"
	}
	_, _ = fmt.Fprintf(w, format, args...)
}

// ActionFunc is a function type to set *cli.Command Action/Before.
type ActionFunc func(ctx context.Context, cmd *cli.Command) error

// MaximumNArgs returns an error if there are more than n args.
func MaximumNArgs(n int) ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		args := cmd.Args()
		if args.Len() > n {
			return fmt.Errorf("accepts at most %d arg(s), received %d", n, args.Len())
		}
		return nil
	}
}
