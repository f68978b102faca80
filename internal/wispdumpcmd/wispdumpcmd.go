// Package wispdumpcmd implements cmd/wispdump, the bytecode disassembler
// driver (§0, §6 "disasm"): reads a compiled bytecode image (§4.3) and
// prints its per-function instruction listing plus, by default, an
// aggregate instruction/function-count table (internal/disasm).
package wispdumpcmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/wisplang/wisp/internal/binfmt"
	"github.com/wisplang/wisp/internal/disasm"
)

const binName = "wispdump"

var usage = fmt.Sprintf(`usage: %s [--stats=false] <image.wispc>
       %[1]s -h|--help
       %[1]s -v|--version

Disassembles a wisp bytecode image (§4.3) into a readable instruction
listing.

Valid flag options are:
       -h --help              Show this help and exit.
       -v --version           Print version and exit.
       --stats <bool>         Print aggregate instruction/function counts
                              after the listing (default true).
`, binName)

// Cmd is wispdump's flag-parsed command line.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Stats   bool `flag:"stats"`

	args  []string
	flags map[string]bool
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) != 1 {
		return fmt.Errorf("expected exactly one bytecode image, got %d", len(c.args))
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	// --stats defaults on; mainer.Parser only tells us a flag was set via
	// c.flags, so absence of "stats" from that set means the true default
	// below stands rather than flag.Bool's usual zero-value default.
	c.Stats = true

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

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.dump(ctx, stdio); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}

func (c *Cmd) dump(_ context.Context, stdio mainer.Stdio) error {
	data, err := os.ReadFile(c.args[0])
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return err
	}
	prog, err := binfmt.Decode(data)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return err
	}

	fmt.Fprint(stdio.Stdout, disasm.Listing(prog))
	if c.Stats {
		fmt.Fprintln(stdio.Stdout)
		disasm.WriteStats(stdio.Stdout, disasm.ComputeStats(prog))
	}
	return nil
}
