package main

import (
	"os"

	"github.com/sasilab/sasi/sim/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
