package main

import (
	"os"

	"github.com/steveyegge/muster/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
