package main

import (
	"os"

	"github.com/conneroisu/mdbook-env/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
