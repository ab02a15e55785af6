// Package main implements the entry point for the Folio API server, which
// serves authors, books and comments as JSON:API resources.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
