package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"pilot/internal/config"
	"pilot/internal/logging"
	"pilot/internal/types"
)

// RodDriver drives a Chrome page through the DevTools protocol. One
// incognito context per driver keeps cookies and storage isolated between
// concurrent test cases.
type RodDriver struct {
	cfg     config.BrowserConfig
	browser *rod.Browser
	page    *rod.Page

	// ownsBrowser is false when connected to an external debugger; we
	// must not close a browser we did not launch.
	ownsBrowser bool
}

// NewRodDriver launches (or connects to) Chrome and opens a blank page in
// a fresh incognito context.
func NewRodDriver(ctx context.Context, cfg config.BrowserConfig) (*RodDriver, error) {
	controlURL := cfg.DebuggerURL
	owns := false
	if controlURL == "" {
		url, err := launcher.New().Headless(cfg.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
		owns = true
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserError("set viewport: %v", err)
	}

	logging.Browser("browser session started (headless=%v)", cfg.Headless)
	return &RodDriver{cfg: cfg, browser: browser, page: page, ownsBrowser: owns}, nil
}

// Navigate loads url and waits for the load event within the configured
// navigation timeout.
func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	page := d.page.Context(ctx).Timeout(d.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load of %s: %w", url, err)
	}
	logging.Browser("navigated to %s", url)
	return nil
}

// CaptureState captures the pruned DOM, a viewport screenshot, and the
// current URL. The three fields reflect the same moment: the page is not
// interacted with between reads.
func (d *RodDriver) CaptureState(ctx context.Context) (types.PageState, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "capture state")
	defer timer.Stop()

	page := d.page.Context(ctx)

	dom, err := d.prunedSnapshot(page)
	if err != nil {
		return types.PageState{}, fmt.Errorf("dom snapshot: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return types.PageState{}, fmt.Errorf("page info: %w", err)
	}

	// Screenshot failure degrades to a text-only state; the oracle can
	// still work from the DOM alone.
	shot, err := page.Screenshot(false, nil)
	if err != nil {
		logging.BrowserError("screenshot failed: %v", err)
		shot = nil
	}

	return types.PageState{
		DOM:        dom,
		Screenshot: shot,
		URL:        info.URL,
		CapturedAt: time.Now(),
	}, nil
}

// FullSnapshot returns the complete serialized page, for repair prompts.
func (d *RodDriver) FullSnapshot(ctx context.Context) (string, error) {
	html, err := d.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

// prunedSnapshot walks the DOM in-page and serializes a reduced tree:
// styles and scripts dropped, text truncated, optionally only interactive
// elements kept. This keeps oracle prompts inside token limits.
func (d *RodDriver) prunedSnapshot(page *rod.Page) (string, error) {
	res, err := page.Evaluate(&rod.EvalOptions{
		JS: `
		(skipStyles, skipScripts, interactiveOnly, maxText) => {
			const walk = (node) => {
				if (node.nodeType === Node.TEXT_NODE) {
					const text = node.textContent.trim();
					return text.length > 0 ? text.slice(0, maxText) : null;
				}
				if (node.nodeType !== Node.ELEMENT_NODE) return null;
				if (skipStyles && node.tagName === 'STYLE') return null;
				if (skipScripts && (node.tagName === 'SCRIPT' || node.tagName === 'NOSCRIPT')) return null;

				const children = Array.from(node.childNodes)
					.map(walk)
					.filter(c => c !== null && c !== '');

				if (interactiveOnly && children.length === 0) {
					const interactive = node.tagName === 'A' || node.tagName === 'BUTTON' ||
						node.tagName === 'INPUT' || node.tagName === 'SELECT' ||
						node.tagName === 'TEXTAREA' || node.hasAttribute('onclick');
					if (!interactive) return null;
				}

				const attrs = {};
				for (const attr of Array.from(node.attributes || [])) {
					attrs[attr.name] = attr.value;
				}
				return { tag: node.tagName, attrs, children };
			};
			return JSON.stringify(walk(document.body), null, 1);
		}
		`,
		JSArgs: []interface{}{
			d.cfg.SkipStyles,
			d.cfg.SkipScripts,
			d.cfg.InteractiveOnly,
			d.cfg.MaxTextLength,
		},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", err
	}
	if res == nil || res.Value.Nil() {
		return "", fmt.Errorf("empty snapshot result")
	}
	return res.Value.Str(), nil
}

// Execute applies one instruction to the live page. No retries here;
// retry policy lives in the repair loop.
func (d *RodDriver) Execute(ctx context.Context, in types.Instruction) error {
	if err := in.Validate(); err != nil {
		return err
	}
	page := d.page.Context(ctx)

	switch in.Action {
	case types.ActionClick:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)

	case types.ActionDoubleClick:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 2)

	case types.ActionFill, types.ActionType_:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.Input(in.Value)

	case types.ActionNavigate:
		return d.Navigate(ctx, in.Value)

	case types.ActionWait:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.WaitVisible()

	case types.ActionWaitTime:
		ms, err := strconv.Atoi(in.Value)
		if err != nil {
			return fmt.Errorf("wait_time value %q: %w", in.Value, err)
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case types.ActionHover:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.Hover()

	case types.ActionSelect:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.Select([]string{in.Value}, true, rod.SelectorTypeText)

	case types.ActionPress:
		key, err := keyFor(in.Value)
		if err != nil {
			return err
		}
		return page.Keyboard.Press(key)

	case types.ActionAssertText:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		text, err := el.Text()
		if err != nil {
			return fmt.Errorf("read text of %s: %w", in.Locator, err)
		}
		if !strings.Contains(text, in.Value) {
			return fmt.Errorf("assert_text: %q does not contain %q", text, in.Value)
		}
		return nil

	case types.ActionAssertVisible:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		visible, err := el.Visible()
		if err != nil {
			return fmt.Errorf("check visibility of %s: %w", in.Locator, err)
		}
		if !visible {
			return fmt.Errorf("assert_visible: %s is not visible", in.Locator)
		}
		return nil

	case types.ActionAssertURL:
		info, err := page.Info()
		if err != nil {
			return fmt.Errorf("page info: %w", err)
		}
		if !strings.Contains(info.URL, in.Value) {
			return fmt.Errorf("assert_url: %q does not contain %q", info.URL, in.Value)
		}
		return nil

	case types.ActionScroll:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.ScrollIntoView()

	case types.ActionClear:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input("")

	case types.ActionCheck, types.ActionUncheck:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		checked, err := el.Property("checked")
		if err != nil {
			return fmt.Errorf("read checked of %s: %w", in.Locator, err)
		}
		want := in.Action == types.ActionCheck
		if checked.Bool() == want {
			return nil
		}
		return el.Click(proto.InputMouseButtonLeft, 1)

	case types.ActionFocus:
		el, err := element(page, in.Locator)
		if err != nil {
			return err
		}
		return el.Focus()

	case types.ActionScreenshot:
		_, err := page.Screenshot(true, nil)
		return err

	default:
		return fmt.Errorf("unknown action kind %q", in.Action)
	}
}

// Close tears down the incognito context and, when we launched Chrome
// ourselves, the browser.
func (d *RodDriver) Close() error {
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil && d.ownsBrowser {
		return d.browser.Close()
	}
	return nil
}

// element resolves a locator to a page element.
func element(page *rod.Page, locator string) (*rod.Element, error) {
	el, err := page.Element(locator)
	if err != nil {
		return nil, fmt.Errorf("element not found %q: %w", locator, err)
	}
	return el, nil
}

// namedKeys maps the key names the oracle emits to DevTools keys.
var namedKeys = map[string]input.Key{
	"enter":     input.Enter,
	"tab":       input.Tab,
	"escape":    input.Escape,
	"esc":       input.Escape,
	"backspace": input.Backspace,
	"delete":    input.Delete,
	"arrowup":   input.ArrowUp,
	"arrowdown": input.ArrowDown,
	"space":     input.Space,
}

// keyFor resolves a press value: a named key or a single character.
func keyFor(value string) (input.Key, error) {
	if k, ok := namedKeys[strings.ToLower(value)]; ok {
		return k, nil
	}
	runes := []rune(value)
	if len(runes) == 1 {
		return input.Key(runes[0]), nil
	}
	return 0, fmt.Errorf("unsupported key %q", value)
}
