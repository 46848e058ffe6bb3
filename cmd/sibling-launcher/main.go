package main

import (
	"os"

	"github.com/samber/lo"
	"github.com/wrouesnel/sibling-launcher/pkg/entrypoint"
	"github.com/wrouesnel/sibling-launcher/pkg/envutil"
)

func main() {
	os.Exit(run())
}

func run() int {
	env := envutil.FromEnvironment(os.Environ())

	args := entrypoint.LaunchArgs{
		StdIn:      os.Stdin,
		StdOut:     os.Stdout,
		StdErr:     os.Stderr,
		Env:        env,
		Args:       os.Args[1:],
		Executable: lo.Must(os.Executable()),
	}
	return entrypoint.Entrypoint(args)
}
