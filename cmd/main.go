// cmd/main.go is the application entry point.
package main

import (
	"os"

	"github.com/Shivanand-hulikatti/eventreg/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
