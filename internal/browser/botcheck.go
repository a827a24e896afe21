package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// blockingOverlaySelectors are full-page challenge frames and overlay
// divs that block interaction with the underlying page entirely.
var blockingOverlaySelectors = []string{
	"#challenge-running",
	"#challenge-form",
	"#cf-wrapper",
	"div.captcha-overlay",
	"div.robot-check-overlay",
}

// captchaIframeSelectors are CAPTCHA widget iframes; small tracking
// iframes matching these selectors must not trigger a false positive, so
// a minimum visible size is required in addition to presence.
var captchaIframeSelectors = []string{
	`iframe[src*="challenges.cloudflare.com"]`,
	`iframe[src*="hcaptcha.com/captcha"]`,
}

const (
	minCaptchaWidth  = 200
	minCaptchaHeight = 100
)

// checkboxSelectors are clickable "prove I'm human" checkboxes that can
// sometimes be dismissed without operator intervention.
var checkboxSelectors = []string{
	".recaptcha-checkbox",
	"#recaptcha-anchor",
}

const visibleSelectorJS = `(function(sel){
	var el = document.querySelector(sel);
	if (!el) return false;
	var r = el.getBoundingClientRect();
	var style = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && style.visibility !== 'hidden' && style.display !== 'none';
})(%q)`

const visibleIframeMinSizeJS = `(function(sel,minW,minH){
	var el = document.querySelector(sel);
	if (!el) return false;
	var r = el.getBoundingClientRect();
	var style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	return r.width > minW && r.height > minH;
})(%q, %d, %d)`

func evalVisible(ctx context.Context, js string) bool {
	var result bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &result)); err != nil {
		return false
	}

	return result
}

func anyBlockingOverlayVisible(ctx context.Context) bool {
	for _, sel := range blockingOverlaySelectors {
		if evalVisible(ctx, fmt.Sprintf(visibleSelectorJS, sel)) {
			return true
		}
	}

	return false
}

func anyCaptchaIframeVisible(ctx context.Context) bool {
	for _, sel := range captchaIframeSelectors {
		if evalVisible(ctx, fmt.Sprintf(visibleIframeMinSizeJS, sel, minCaptchaWidth, minCaptchaHeight)) {
			return true
		}
	}

	return false
}

// clickVisibleCheckbox clicks the first visible checkbox selector found
// and reports whether a click happened.
func clickVisibleCheckbox(ctx context.Context) bool {
	for _, sel := range checkboxSelectors {
		if !evalVisible(ctx, fmt.Sprintf(visibleSelectorJS, sel)) {
			continue
		}

		if err := chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
			continue
		}

		return true
	}

	return false
}

// detectBotCheck iterates blocking overlays and CAPTCHA iframes. If a
// clickable checkbox is present it is clicked and the page rechecked, up
// to maxBotCheckAttempts times. If a blocker is still present afterward,
// it returns BotCheckDetected; the caller must leave the tab open in that
// case so an operator can complete the challenge by hand.
func (p *Pool) detectBotCheck(ctx context.Context, sourceKey string) error {
	for attempt := 0; attempt < maxBotCheckAttempts; attempt++ {
		found := anyBlockingOverlayVisible(ctx) || anyCaptchaIframeVisible(ctx)
		if !found {
			return nil
		}

		if clickVisibleCheckbox(ctx) {
			time.Sleep(2 * time.Second)

			continue
		}

		return &BotCheckDetected{Source: sourceKey}
	}

	if anyBlockingOverlayVisible(ctx) || anyCaptchaIframeVisible(ctx) {
		return &BotCheckDetected{Source: sourceKey}
	}

	return nil
}
