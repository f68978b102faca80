package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/wisplang/wisp/internal/wishcmd"
)

var (
	version   = "{v}"
	buildDate = "{d}"
)

func main() {
	c := wishcmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
