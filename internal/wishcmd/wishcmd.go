// Package wishcmd implements cmd/wish, the interactive shell driver (§0, §6
// "wish"): wires internal/repl's read-eval-print loop to mainer's Stdio and
// flag-parsed Cmd shape, the same pattern the other three wisp binaries use.
package wishcmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mna/mainer"

	"github.com/wisplang/wisp/internal/builtin"
	"github.com/wisplang/wisp/internal/machine"
	"github.com/wisplang/wisp/internal/repl"
)

const binName = "wish"

var usage = fmt.Sprintf(`usage: %s [--no-history]
       %[1]s -h|--help
       %[1]s -v|--version

Starts an interactive wisp shell.

Valid flag options are:
       -h --help              Show this help and exit.
       -v --version           Print version and exit.
       --no-history           Don't persist input history between sessions.
`, binName)

// Cmd is wish's flag-parsed command line.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help      bool `flag:"h,help"`
	Version   bool `flag:"v,version"`
	NoHistory bool `flag:"no-history"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error { return nil }

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, usage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, usage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	// Unlike the other three drivers, wish has no single cancelable
	// operation to wrap in a context — readline's own Ctrl-C/Ctrl-D handling
	// inside Run is what ends the session.
	if err := c.shell(stdio); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}

func (c *Cmd) shell(stdio mainer.Stdio) error {
	historyPath := ""
	if !c.NoHistory {
		if home, err := os.UserHomeDir(); err == nil {
			historyPath = filepath.Join(home, ".wish_history")
		}
	}

	in, ok := stdio.Stdin.(io.ReadCloser)
	if !ok {
		in = io.NopCloser(stdio.Stdin)
	}

	r, err := repl.New(in, stdio.Stdout, historyPath)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return err
	}
	defer r.Close()

	fmt.Fprint(stdio.Stdout, repl.Banner(builtinCount()))
	return r.Run()
}

func builtinCount() int {
	vm := machine.New(nil)
	builtin.Register(vm)
	return len(vm.Builtins)
}
