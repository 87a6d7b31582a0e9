package main

import (
	"os"

	"github.com/acemcp/acemcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
