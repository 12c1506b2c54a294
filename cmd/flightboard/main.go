package main

import (
	"os"

	"github.com/skyhub/flightboard/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
