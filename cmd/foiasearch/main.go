// Command foiasearch searches the FOIA email archive from a terminal.
package main

import (
	"os"

	"github.com/kirillkom/foia-search/cmd/foiasearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
