package main

import (
	"fmt"
	"os"

	"github.com/qrv0/epgfetch/internal/logtrace"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	err := newRootCmd().Execute()
	logtrace.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
