package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/wisplang/wisp/internal/wispcmd"
)

var (
	version   = "{v}"
	buildDate = "{d}"
)

func main() {
	c := wispcmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
