package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// cdpSession drives one browser process through chromedp. The tab context
// outlives every operation; each operation runs on a child context carrying
// its own deadline and the caller's cancellation.
type cdpSession struct {
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
	timeout     time.Duration
	navTimeout  time.Duration
	logger      *zap.Logger
}

var cdpKeys = map[Key]string{
	KeyBackspace: kb.Backspace,
	KeyEnter:     kb.Enter,
	KeyTab:       kb.Tab,
	KeyEscape:    kb.Escape,
}

// openChromedp starts the browser with chromedp's exec allocator. chromedp
// cannot download a browser, so when none is installed the Chromium build
// fetched by Rod's launcher is used.
func openChromedp(ctx context.Context, b Browser, opts Options) (*cdpSession, error) {
	bin, err := findBinary(b, opts.BinPath)
	if err != nil {
		return nil, err
	}
	if bin == "" {
		if bin, err = downloadChromium(ctx, opts.Logger); err != nil {
			return nil, err
		}
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(bin),
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	for _, raw := range opts.Flags {
		name, value, hasValue := splitFlag(raw)
		if hasValue {
			allocOpts = append(allocOpts, chromedp.Flag(name, value))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	s := &cdpSession{
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
		timeout:     opts.Timeout,
		navTimeout:  opts.NavigationTimeout,
		logger:      opts.Logger,
	}

	// The first Run starts the browser and ties its lifetime to the context
	// it runs on, so it must run on the tab itself rather than a child with
	// a deadline. ctx may still abort the launch.
	stop := context.AfterFunc(ctx, tabCancel)
	err = chromedp.Run(tab)
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: launch %s: %v", ErrDriverUnavailable, b, err)
	}

	opts.Logger.Debug("browser session opened",
		zap.String("backend", string(BackendChromedp)),
		zap.String("browser", string(b)),
		zap.Bool("headless", opts.Headless))
	return s, nil
}

func (s *cdpSession) run(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, cancel := context.WithTimeout(s.tab, d)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(c, actions...)
}

func by(loc Locator) chromedp.QueryOption {
	if loc.Kind == KindXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// locate waits for presence, so a missing element is told apart from one
// that never becomes visible or enabled.
func (s *cdpSession) locate(ctx context.Context, loc Locator) error {
	if err := s.run(ctx, waitFor(s.timeout, loc), chromedp.WaitReady(loc.Expr, by(loc))); err != nil {
		return classify(err, loc, ErrElementNotFound)
	}
	return nil
}

// await locates loc, then runs actions under a fresh explicit wait.
func (s *cdpSession) await(ctx context.Context, loc Locator, actions ...chromedp.Action) error {
	if err := s.locate(ctx, loc); err != nil {
		return err
	}
	if err := s.run(ctx, waitFor(s.timeout, loc), actions...); err != nil {
		return classify(err, loc, ErrTimeout)
	}
	return nil
}

func (s *cdpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *cdpSession) SetWindowSize(ctx context.Context, width, height int) error {
	if width > 0 && height > 0 {
		return s.run(ctx, s.timeout, chromedp.EmulateViewport(int64(width), int64(height)))
	}
	return s.run(ctx, s.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		id, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		return browser.SetWindowBounds(id, &browser.Bounds{WindowState: browser.WindowStateMaximized}).Do(ctx)
	}))
}

func (s *cdpSession) WaitPresent(ctx context.Context, loc Locator) error {
	return s.locate(ctx, loc)
}

func (s *cdpSession) WaitVisible(ctx context.Context, loc Locator) error {
	return s.await(ctx, loc, chromedp.WaitVisible(loc.Expr, by(loc)))
}

func (s *cdpSession) WaitInvisible(ctx context.Context, loc Locator) error {
	var nodes []*cdp.Node
	if err := s.run(ctx, s.timeout, chromedp.Nodes(loc.Expr, &nodes, by(loc), chromedp.AtLeast(0))); err != nil {
		return classify(err, loc, ErrTimeout)
	}
	if len(nodes) == 0 {
		return nil
	}
	if err := s.run(ctx, waitFor(s.timeout, loc), chromedp.WaitNotVisible(loc.Expr, by(loc))); err != nil {
		return classify(err, loc, ErrTimeout)
	}
	return nil
}

func (s *cdpSession) WaitClickable(ctx context.Context, loc Locator) error {
	return s.await(ctx, loc,
		chromedp.WaitVisible(loc.Expr, by(loc)),
		chromedp.WaitEnabled(loc.Expr, by(loc)),
	)
}

func (s *cdpSession) ScrollTo(ctx context.Context, loc Locator) error {
	return s.await(ctx, loc, chromedp.ScrollIntoView(loc.Expr, by(loc)))
}

func (s *cdpSession) Click(ctx context.Context, loc Locator) error {
	return s.await(ctx, loc,
		chromedp.WaitVisible(loc.Expr, by(loc)),
		chromedp.WaitEnabled(loc.Expr, by(loc)),
		chromedp.Click(loc.Expr, by(loc), chromedp.NodeVisible),
	)
}

func (s *cdpSession) InputText(ctx context.Context, loc Locator, text string, clear bool) error {
	var actions []chromedp.Action
	if clear {
		actions = append(actions, chromedp.Clear(loc.Expr, by(loc)))
	}
	if text != "" {
		actions = append(actions, chromedp.SendKeys(loc.Expr, text, by(loc)))
	}
	return s.await(ctx, loc, actions...)
}

func (s *cdpSession) Fill(ctx context.Context, loc Locator, text string, clear bool) error {
	actions := []chromedp.Action{chromedp.Focus(loc.Expr, by(loc))}
	if clear {
		actions = append(actions,
			chromedp.Evaluate(`document.activeElement && document.activeElement.select && document.activeElement.select()`, nil),
			chromedp.KeyEvent(kb.Backspace),
		)
	}
	if text != "" {
		actions = append(actions, chromedp.KeyEvent(text))
	}
	return s.await(ctx, loc, actions...)
}

func (s *cdpSession) PressKey(ctx context.Context, key Key) error {
	k, ok := cdpKeys[key]
	if !ok {
		return fmt.Errorf("press key: unknown key %d", key)
	}
	if err := s.run(ctx, s.timeout, chromedp.KeyEvent(k)); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (s *cdpSession) Text(ctx context.Context, loc Locator) (string, error) {
	var text string
	err := s.await(ctx, loc,
		chromedp.WaitVisible(loc.Expr, by(loc)),
		chromedp.Text(loc.Expr, &text, by(loc)),
	)
	return text, err
}

func (s *cdpSession) Attribute(ctx context.Context, loc Locator, name string) (string, error) {
	var prop any
	err := s.await(ctx, loc,
		chromedp.WaitVisible(loc.Expr, by(loc)),
		chromedp.JavascriptAttribute(loc.Expr, name, &prop, by(loc)),
	)
	if err != nil {
		return "", err
	}
	if prop != nil {
		if str, ok := prop.(string); ok {
			return str, nil
		}
		return fmt.Sprint(prop), nil
	}

	var (
		value string
		ok    bool
	)
	if err := s.await(ctx, loc, chromedp.AttributeValue(loc.Expr, name, &value, &ok, by(loc))); err != nil {
		return "", err
	}
	return value, nil
}

func (s *cdpSession) Drag(ctx context.Context, loc Locator, dx, dy int) error {
	var box *dom.BoxModel
	err := s.await(ctx, loc,
		chromedp.WaitVisible(loc.Expr, by(loc)),
		chromedp.ScrollIntoView(loc.Expr, by(loc)),
		chromedp.Dimensions(loc.Expr, &box, by(loc)),
	)
	if err != nil {
		return err
	}
	if box == nil || len(box.Content) < 8 {
		return fmt.Errorf("drag %s: element has no box model", loc)
	}

	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += box.Content[i] / 4
		y += box.Content[i+1] / 4
	}
	toX, toY := x+float64(dx), y+float64(dy)

	err = s.run(ctx, waitFor(s.timeout, loc), chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, toX, toY).
			WithButton(input.Left).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, toX, toY).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("drag %s: %w", loc, err)
	}
	return nil
}

func (s *cdpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.navTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab and the browser process.
func (s *cdpSession) Close() error {
	err := chromedp.Cancel(s.tab)
	s.tabCancel()
	s.allocCancel()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	s.logger.Debug("browser session closed", zap.String("backend", string(BackendChromedp)))
	return nil
}
