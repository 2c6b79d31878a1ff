package main

import (
	"os"

	"github.com/idkosilov/furniture/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
