package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// Backend names a CDP client library.
type Backend string

const (
	BackendRod      Backend = "rod"
	BackendChromedp Backend = "chromedp"
)

// Browser is a normalized browser name.
type Browser string

const (
	BrowserChrome   Browser = "chrome"
	BrowserChromium Browser = "chromium"
	BrowserEdge     Browser = "edge"
)

// Options configures a browser session.
type Options struct {
	// Browser is one of chrome, chromium or edge, case-insensitive.
	Browser string

	// Backend selects the CDP client. Empty means BackendRod.
	Backend Backend

	// Headless runs the browser without a window.
	Headless bool

	// Timeout is the explicit wait applied to every element operation.
	Timeout time.Duration

	// NavigationTimeout bounds page loads.
	NavigationTimeout time.Duration

	// BinPath overrides browser binary discovery.
	BinPath string

	// Flags are extra command-line switches, with or without leading
	// dashes, e.g. "window-size=1920,1080".
	Flags []string

	// Logger receives session lifecycle events. Nil means no logging.
	Logger *zap.Logger
}

// DefaultOptions returns the options the journey runs with when nothing is
// configured.
func DefaultOptions() Options {
	return Options{
		Browser:           string(BrowserChrome),
		Backend:           BackendRod,
		Headless:          true,
		Timeout:           10 * time.Second,
		NavigationTimeout: 30 * time.Second,
	}
}

// ParseBrowser normalizes a browser name.
func ParseBrowser(name string) (Browser, error) {
	switch b := Browser(strings.ToLower(strings.TrimSpace(name))); b {
	case BrowserChrome, BrowserChromium, BrowserEdge:
		return b, nil
	case "msedge", "microsoft-edge":
		return BrowserEdge, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBrowser, name)
	}
}

// Open starts a browser and returns a session with one blank page.
func Open(ctx context.Context, opts Options) (Session, error) {
	browser, err := ParseBrowser(opts.Browser)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultOptions().NavigationTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch opts.Backend {
	case BackendRod, "":
		s, err := openRod(ctx, browser, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendChromedp:
		s, err := openChromedp(ctx, browser, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, opts.Backend)
	}
}

// edgeCandidates lists where Microsoft Edge installs itself.
func edgeCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"}
	case "windows":
		return []string{
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
		}
	default:
		return []string{
			"/usr/bin/microsoft-edge",
			"/usr/bin/microsoft-edge-stable",
			"/opt/microsoft/msedge/msedge",
		}
	}
}

// findBinary resolves the browser executable. An empty result for
// chrome/chromium means "let Rod's launcher download one".
func findBinary(b Browser, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%w: %s binary %s: %v", ErrDriverUnavailable, b, override, err)
		}
		return override, nil
	}

	if b == BrowserEdge {
		for _, name := range []string{"microsoft-edge", "microsoft-edge-stable", "msedge"} {
			if p, err := exec.LookPath(name); err == nil {
				return p, nil
			}
		}
		for _, p := range edgeCandidates() {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		return "", fmt.Errorf("%w: microsoft edge is not installed", ErrDriverUnavailable)
	}

	if p, ok := launcher.LookPath(); ok {
		return p, nil
	}
	return "", nil
}

// downloadChromium fetches Rod's pinned Chromium build, the same one the
// Rod launcher falls back to.
func downloadChromium(ctx context.Context, logger *zap.Logger) (string, error) {
	logger.Info("no local browser found, downloading chromium")
	b := launcher.NewBrowser()
	b.Context = ctx
	p, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("%w: download chromium: %v", ErrDriverUnavailable, err)
	}
	return p, nil
}

// splitFlag turns "--name=value" into its name and optional value.
func splitFlag(raw string) (name, value string, hasValue bool) {
	return strings.Cut(strings.TrimLeft(raw, "-"), "=")
}
