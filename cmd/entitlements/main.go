package main

import (
	"os"

	"github.com/hydrakit/entitlements/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
