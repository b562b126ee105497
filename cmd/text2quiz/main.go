package main

import (
	"os"

	"github.com/text2quiz/text2quiz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
