// Package shell runs the interactive command loop of the rcon command.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/schultz-is/rconsh/internal/logging"
)

const (
	// Prompt is written before every command is read.
	Prompt = "Enter a command: "

	// QuitCommand ends the loop. It is matched case-insensitively.
	QuitCommand = "quit"
)

// Session executes commands against a server.
type Session interface {
	ExecCommand(ctx context.Context, cmd string) (string, error)

	// Ready reports whether the session still accepts commands.
	Ready() bool
}

// Run reads commands from in, one per line, executes them on session and writes the responses to
// out until the quit command is entered or in is exhausted. Blank lines are skipped and empty
// responses print nothing.
//
// A failed command is reported on out and the loop continues. If the failure left the session
// unusable, Run returns the error instead.
func Run(ctx context.Context, in io.Reader, out io.Writer, session Session) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
			continue
		case strings.EqualFold(cmd, QuitCommand):
			fmt.Fprintln(out, "Exiting")
			return nil
		}

		logging.Debugf("executing %q", cmd)
		resp, err := session.ExecCommand(ctx, cmd)
		if err != nil {
			if !session.Ready() {
				return fmt.Errorf("execute %q: %w", cmd, err)
			}
			fmt.Fprintf(out, "Error: unable to execute the command: %v\n", err)
			continue
		}

		if resp != "" {
			fmt.Fprintln(out, resp)
		}
	}
}
