// Package main provides the crucible binary entry point.
// Crucible evaluates startup ideas against redline rules and writes a
// structured verdict plus a one-page report for each idea.
package main

import (
	"fmt"
	"os"
	"runtime"

	// Register LLM providers via init()
	_ "github.com/c360studio/crucible/llm/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "crucible"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
