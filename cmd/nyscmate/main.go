package main

import (
	"os"

	"nyscmate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
