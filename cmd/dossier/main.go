package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/dossier/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cmd.FormatError(err))
		os.Exit(1)
	}
}
