package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer returns the post-JavaScript HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeRenderer drives a headless Chrome through chromedp.
type ChromeRenderer struct {
	Timeout          time.Duration
	NetworkIdleAfter time.Duration
}

func NewChromeRenderer(timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChromeRenderer{Timeout: timeout, NetworkIdleAfter: 1200 * time.Millisecond}
}

// Render launches a headless browser, waits for readiness and network idle, then returns HTML
func (r *ChromeRenderer) Render(ctx context.Context, urlStr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(browserUserAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	// Readiness and idle waits are soft; whatever HTML exists afterwards is used.
	readyCtx, cancelReady := context.WithTimeout(browserCtx, 5*time.Second)
	_ = chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancelReady()

	if r.NetworkIdleAfter > 0 {
		idle := r.NetworkIdleAfter
		if idle > 5*time.Second {
			idle = 5 * time.Second
		}
		idleCtx, cancelIdle := context.WithTimeout(browserCtx, idle+time.Second)
		_ = chromedp.Run(idleCtx, waitForNetworkIdle(idle))
		cancelIdle()
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// waitForNetworkIdle waits until no network requests are in flight for the given duration
func waitForNetworkIdle(d time.Duration) chromedp.ActionFunc {
	js := `(function(waitMs){
      return new Promise((resolve)=>{
        if (!('PerformanceObserver' in window)) { setTimeout(resolve, waitMs); return; }
        let last = Date.now();
        const obs = new PerformanceObserver(()=>{ last = Date.now(); });
        try { obs.observe({entryTypes:['resource','navigation']}); } catch(e) {}
        const tick = () => {
          if (Date.now()-last >= waitMs) { try { obs.disconnect(); } catch(e){} resolve(); return; }
          setTimeout(tick, 100);
        };
        tick();
      });
    })(%d);`
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(js, int(d.Milliseconds())), nil))
	}
}
