// Command modalkit runs the modal messaging demo, relay and tools.
package main

import (
	"os"

	"github.com/sadsciencee/modalkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
