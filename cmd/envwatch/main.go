package main

import (
	"os"

	"github.com/grovetools/envwatch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
