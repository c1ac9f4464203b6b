package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/vaultsync/internal/client/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
