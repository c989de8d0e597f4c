// posd is the offline-first POS terminal daemon: a localhost API over the
// durable store, offline queue, snapshot sync and backup subsystem.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
