package main

import (
	"os"

	"github.com/textpool/textpool/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
