//go:build e2e

// Package e2e provides end-to-end tests for the revenue calculator journey.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chromium-based browser (auto-downloaded by Rod if not
// present) and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// E2E tests use:
//   - the driver package, on both the rod and chromedp backends
//   - the calculator-fixture server as the site under test
//   - the journey runner exactly as the revcalc command wires it
//
// Test isolation:
// Each test starts its own fixture server on a random port and launches
// its own browser instance.
package e2e
