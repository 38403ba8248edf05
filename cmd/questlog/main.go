package main

import (
	"os"

	"github.com/youssefsiam38/questlog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
