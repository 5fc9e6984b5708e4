//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/thesyncim/revcalc/cmd/calculator-fixture/server"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
	"github.com/thesyncim/revcalc/pkg/revcalc/pages"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

var backends = []driver.Backend{driver.BackendRod, driver.BackendChromedp}

// startFixture starts a calculator fixture on a random port.
func startFixture(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.NewServer(server.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if _, err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("server shutdown error: %v", err)
		}
	})
	t.Logf("fixture serving %s", srv.URL())
	return srv
}

func browserOptions(t *testing.T, backend driver.Backend) driver.Options {
	opts := driver.DefaultOptions()
	opts.Backend = backend
	opts.Logger = zaptest.NewLogger(t)
	opts.Flags = append(opts.Flags, "user-data-dir="+newProfileDir(t))
	return opts
}

// TestBrowser_Smoke verifies the infrastructure on each backend: the
// fixture serves, a browser launches and navigates, the locators resolve
// and the slider's value can be read.
//
// This is a smoke test - it validates plumbing, not the journey.
func TestBrowser_Smoke(t *testing.T) {
	srv := startFixture(t)

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			sess, err := driver.Open(ctx, browserOptions(t, backend))
			if err != nil {
				t.Fatalf("failed to open browser: %v", err)
			}
			defer func() {
				if err := sess.Close(); err != nil {
					t.Errorf("browser close error: %v", err)
				}
			}()

			if err := sess.SetWindowSize(ctx, 1920, 1080); err != nil {
				t.Fatalf("set window size: %v", err)
			}
			if err := sess.Navigate(ctx, srv.URL()); err != nil {
				t.Fatalf("navigate: %v", err)
			}
			if err := sess.Click(ctx, pages.RevenueCalculatorLink); err != nil {
				t.Fatalf("click revenue calculator: %v", err)
			}

			value, err := sess.Attribute(ctx, pages.SliderThumbInput, "value")
			if err != nil {
				t.Fatalf("read slider: %v", err)
			}
			if value != "200" {
				t.Errorf("slider value = %q, want %q", value, "200")
			}

			total, err := sess.Text(ctx, pages.TotalRecurringAmount)
			if err != nil {
				t.Fatalf("read total: %v", err)
			}
			if total != "$0" {
				t.Errorf("total = %q, want %q", total, "$0")
			}

			shot, err := sess.Screenshot(ctx)
			if err != nil {
				t.Fatalf("screenshot: %v", err)
			}
			if !bytes.HasPrefix(shot, pngMagic) {
				t.Errorf("screenshot is not a PNG: % x", shot[:min(len(shot), 8)])
			}
		})
	}
}

// TestBrowser_InputHonorsContext checks that raw input (key presses and
// drags) stops once the caller's context is done.
func TestBrowser_InputHonorsContext(t *testing.T) {
	srv := startFixture(t)

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			sess, err := driver.Open(ctx, browserOptions(t, backend))
			if err != nil {
				t.Fatalf("failed to open browser: %v", err)
			}
			defer sess.Close()

			if err := sess.Navigate(ctx, srv.URL()); err != nil {
				t.Fatalf("navigate: %v", err)
			}
			if err := sess.Click(ctx, pages.RevenueCalculatorLink); err != nil {
				t.Fatalf("click revenue calculator: %v", err)
			}

			canceled, cancel := context.WithCancel(ctx)
			cancel()

			if err := sess.PressKey(canceled, driver.KeyBackspace); !errors.Is(err, context.Canceled) {
				t.Errorf("PressKey on a canceled context: got %v, want context.Canceled", err)
			}
			if err := sess.Drag(canceled, pages.SliderThumb, 10, 0); !errors.Is(err, context.Canceled) {
				t.Errorf("Drag on a canceled context: got %v, want context.Canceled", err)
			}

			value, err := sess.Attribute(ctx, pages.SliderThumbInput, "value")
			if err != nil {
				t.Fatalf("read slider: %v", err)
			}
			if value != "200" {
				t.Errorf("slider moved to %q after a canceled drag", value)
			}
		})
	}
}

func TestBrowser_MissingElement(t *testing.T) {
	srv := startFixture(t)
	ctx := context.Background()

	opts := browserOptions(t, driver.BackendRod)
	opts.Timeout = 2 * time.Second
	sess, err := driver.Open(ctx, opts)
	if err != nil {
		t.Fatalf("failed to open browser: %v", err)
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, srv.URL()); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	err = sess.Click(ctx, pages.CPTCheckbox("00000"))
	if !errors.Is(err, driver.ErrElementNotFound) {
		t.Errorf("click unknown checkbox: got %v, want ErrElementNotFound", err)
	}
}
