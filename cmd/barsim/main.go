package main

import (
	"os"

	"github.com/quantlab/barsim/cmd/barsim/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
