package browser

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
)

// Tab is one page-render session. Not safe for concurrent use; each work
// item gets its own.
type Tab struct {
	ctx       context.Context
	cancel    context.CancelFunc
	browser   *Browser
	closeOnce sync.Once
}

func (t *Tab) init() error {
	return chromedp.Run(t.ctx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(userAgent).
				WithAcceptLanguage("zh-CN,zh;q=0.9,en;q=0.8").
				WithPlatform("iPhone").
				Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript()).Do(ctx)
			return err
		}),
	)
}

// OnResponse subscribes fn to every observed response URL. The returned stop
// function ends forwarding; chromedp keeps the listener until the tab dies,
// so stop only gates delivery.
func (t *Tab) OnResponse(fn func(url string)) (stop func()) {
	var stopped atomic.Bool
	chromedp.ListenTarget(t.ctx, func(ev interface{}) {
		if stopped.Load() {
			return
		}
		if e, ok := ev.(*network.EventResponseReceived); ok {
			fn(e.Response.URL)
		}
	})
	return func() { stopped.Store(true) }
}

// Navigate loads url. Strict mode waits for the body to be ready; relaxed
// mode settles for the navigation completing, for pages that never reach a
// ready state under automation.
func (t *Tab) Navigate(ctx context.Context, url string, relaxed bool) error {
	if err := t.browser.limiter.Wait(ctx); err != nil {
		return err
	}

	navCtx, cancel := context.WithTimeout(t.ctx, t.browser.opts.NavTimeout)
	defer cancel()

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if !relaxed {
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	tasks = append(tasks, chromedp.Sleep(t.browser.opts.SettleDelay))

	return runWithContext(ctx, navCtx, tasks)
}

// WaitAny waits until any of the selectors is visible, bounded by timeout.
// Timeout is an expected outcome on this site; callers proceed with whatever
// rendered.
func (t *Tab) WaitAny(ctx context.Context, selectors []string, timeout time.Duration) error {
	if len(selectors) == 0 {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	// Comma-joined selector list: visible as soon as any alternative matches.
	sel := strings.Join(selectors, ", ")
	return runWithContext(ctx, waitCtx, chromedp.Tasks{chromedp.WaitVisible(sel, chromedp.ByQuery)})
}

// ScrollStep scrolls one viewport down and lets lazy content load.
func (t *Tab) ScrollStep(ctx context.Context) error {
	stepCtx, cancel := context.WithTimeout(t.ctx, 10*time.Second)
	defer cancel()

	return runWithContext(ctx, stepCtx, chromedp.Tasks{
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
		chromedp.Sleep(700 * time.Millisecond),
	})
}

const harvestScript = `
	(() => {
		const out = [];
		document.querySelectorAll('a[href]').forEach((a) => {
			const box = a.closest('li, article, section, div') || a;
			const text = (box.innerText || '').trim().slice(0, 200);
			out.push({ url: a.href, text: text });
		});
		return out;
	})()
`

// Links harvests every currently visible hyperlink with the text of its
// closest container, so discovery can score candidates later.
func (t *Tab) Links(ctx context.Context) ([]model.CandidateLink, error) {
	evalCtx, cancel := context.WithTimeout(t.ctx, 15*time.Second)
	defer cancel()

	var links []model.CandidateLink
	if err := runWithContext(ctx, evalCtx, chromedp.Tasks{chromedp.Evaluate(harvestScript, &links)}); err != nil {
		return nil, err
	}
	return links, nil
}

// HTML returns the current rendered markup.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	evalCtx, cancel := context.WithTimeout(t.ctx, 15*time.Second)
	defer cancel()

	var html string
	if err := runWithContext(ctx, evalCtx, chromedp.Tasks{chromedp.OuterHTML("html", &html)}); err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot captures the full page for diagnostic artifacts.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(t.ctx, 20*time.Second)
	defer cancel()

	var buf []byte
	if err := runWithContext(ctx, shotCtx, chromedp.Tasks{chromedp.FullScreenshot(&buf, 80)}); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close releases the tab and its browser slot. Idempotent.
func (t *Tab) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		t.browser.release()
	})
}

// runWithContext runs tasks on the tab while also honoring the caller's
// context, which may carry the per-item wall-clock deadline.
func runWithContext(callerCtx, tabCtx context.Context, tasks chromedp.Tasks) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tabCtx, tasks) }()

	select {
	case err := <-done:
		return err
	case <-callerCtx.Done():
		return callerCtx.Err()
	}
}
