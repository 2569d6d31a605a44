package main

import (
	"os"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
