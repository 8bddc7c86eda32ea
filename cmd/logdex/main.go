package main

import (
	"os"

	"github.com/TimelordUK/logdex/cmd/logdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
