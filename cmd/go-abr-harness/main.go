// Package main provides the go-abr-harness CLI entry point.
//
// go-abr-harness runs adaptive bitrate experiments: it plays a DASH stream
// through the bitmovin, dash.js and shaka player backends with a requested
// ABR algorithm, correlates every session with its analytics impression and
// summarizes how each player behaved.
package main

import (
	"fmt"
	"os"

	"github.com/randomizedcoder/go-abr-harness/internal/cli"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-abr-harness
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
