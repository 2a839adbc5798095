package browser

import (
	"os"

	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"

// execAllocatorOptions returns chromedp options that work both locally and
// in Docker. Mobile UA: the target site renders its playable sources far
// more often for mobile clients.
func execAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("window-size", "414,896"),
		chromedp.UserAgent(userAgent),

		// Stability flags to prevent renderer crashes
		chromedp.Flag("disable-features", "site-per-process,TranslateUI"),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
	)

	// In Docker, find the Chrome/Chromium executable
	chromePaths := []string{
		"/headless-shell/headless-shell",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
	}
	for _, p := range chromePaths {
		if _, err := os.Stat(p); err == nil {
			opts = append(opts, chromedp.ExecPath(p))
			break
		}
	}

	return opts
}

// stealthScript hides the most common headless fingerprints. Supplying
// already-decided request parameters only; no challenge solving here.
func stealthScript() string {
	return `
		Object.defineProperty(navigator, 'webdriver', {
			get: () => undefined,
		});
		Object.defineProperty(navigator, 'deviceMemory', {
			get: () => 8,
		});
		Object.defineProperty(navigator, 'hardwareConcurrency', {
			get: () => 6,
		});
		Object.defineProperty(navigator, 'languages', {
			get: () => ['zh-CN', 'zh', 'en'],
		});
		window.chrome = window.chrome || { runtime: {} };
	`
}
