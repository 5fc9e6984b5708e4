// Command revcalc drives a browser through the revenue calculator journey
// and prints each verification as it is made.
//
// Usage:
//
//	go run ./cmd/revcalc                      # built-in fitpeo scenario
//	go run ./cmd/revcalc run --scenario fixture --headless=false
//	go run ./cmd/revcalc run --backend chromedp --report report.json
//	go run ./cmd/revcalc scenarios
//
// Exit status is 0 unless the configuration is unusable (2 for an
// unsupported browser), no browser can be started, or --strict is set and
// the journey failed or a check mismatched.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
