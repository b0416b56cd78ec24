package main

import (
	"fmt"
	"os"

	"github.com/harun/plughost/internal/builtin"
	"github.com/harun/plughost/internal/cli"
)

func main() {
	if err := builtin.Register(cli.RegisterBuiltin); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
