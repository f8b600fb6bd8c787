package main

import (
	"os"

	"github.com/steveyegge/warrig/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
