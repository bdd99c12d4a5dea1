package main

import (
	"os"

	"github.com/memoraos/neuralmap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
