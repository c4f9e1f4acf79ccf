package main

import (
	"os"

	"github.com/moleculab/synthon-sieve/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
