package main

import (
	"os"

	"github.com/qiao-925/ragsync/cmd/ragsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
