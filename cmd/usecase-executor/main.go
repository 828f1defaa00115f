// Package main is the entrypoint for the usecase-executor.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "usecase-executor: %v\n", err)
		os.Exit(1)
	}
}
