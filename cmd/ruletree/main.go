// Command ruletree validates rule tree documents and compiles them to
// SQL, MongoDB and eval targets, or serves the HTTP API doing the same.
package main

import (
	"fmt"
	"os"

	"github.com/ruletree/ruletree/cmd/ruletree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ruletree: %v\n", err)
		os.Exit(1)
	}
}
