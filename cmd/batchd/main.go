package main

import (
	"fmt"
	"os"
)

func main() {
	cfg := DefaultConfig()
	if err := cfg.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	if err := NewRootCmd(&cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
