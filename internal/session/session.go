package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"alumnisync/internal/logging"
	"alumnisync/internal/pacing"
	"alumnisync/pkg/models"
)

// State of the authenticated browsing session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateCheckpointBlocked
	StateExpired
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateCheckpointBlocked:
		return "checkpoint_blocked"
	case StateExpired:
		return "expired"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

var (
	// ErrAuthenticationBlocked: the site presented an interactive
	// verification challenge. Not retryable within a run; the account owner
	// must resolve it manually.
	ErrAuthenticationBlocked = errors.New("authentication blocked by security checkpoint")

	// ErrSessionExpired: the session silently died mid-run (redirect back to
	// login). Fatal for the remaining batch; do not re-authenticate in the
	// same run, repeated credential submission risks account suspension.
	ErrSessionExpired = errors.New("session expired")

	// ErrFetch wraps transient per-profile extraction failures.
	ErrFetch = errors.New("profile fetch failed")

	errNotAuthenticated = errors.New("session is not authenticated")
)

// Options configures a Controller.
type Options struct {
	Email       string
	Password    string
	Headless    bool
	PageTimeout time.Duration
	Pace        *pacing.Policy
	Logger      *logging.Logger
}

// Controller owns one authenticated browsing session against the
// professional-network site. All operations are sequential; concurrent
// sessions against the same account are not supported by design.
type Controller struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	state  State
	log    *logging.Logger
}

// New launches the browser and returns an unauthenticated controller.
func New(parent context.Context, opts Options) (*Controller, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("info")
	}
	if opts.Pace == nil {
		opts.Pace = pacing.New(5*time.Second, 15*time.Second, nil)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		// chromedp is noisy about CDP events it cannot unmarshal
		msg := fmt.Sprintf(format, v...)
		if strings.Contains(msg, "could not unmarshal event") ||
			strings.Contains(msg, "unknown PrivateNetworkRequestPolicy") ||
			strings.Contains(msg, "unknown ClientNavigationReason") {
			return
		}
		log.Printf(format, v...)
	}))

	return &Controller{
		opts: opts,
		ctx:  ctx,
		cancel: func() {
			cancelCtx()
			cancelAlloc()
		},
		state: StateUnauthenticated,
		log:   opts.Logger.With("module", "session"),
	}, nil
}

// State reports the current session state.
func (c *Controller) State() State {
	return c.state
}

// Login authenticates the session. A security checkpoint transitions the
// session to CheckpointBlocked and returns ErrAuthenticationBlocked.
func (c *Controller) Login(ctx context.Context) error {
	if c.opts.Email == "" || c.opts.Password == "" {
		return errors.New("linkedin credentials not configured, run 'alumnisync config set linkedin_email ...'")
	}
	if c.state != StateUnauthenticated {
		return fmt.Errorf("cannot authenticate from state %s", c.state)
	}
	c.state = StateAuthenticating

	tctx, cancel := c.opTimeout(ctx, 3)
	defer cancel()

	var landedURL string
	err := chromedp.Run(tctx,
		chromedp.Navigate("https://www.linkedin.com/login"),
		chromedp.WaitVisible(`input[name="session_key"]`, chromedp.ByQuery),
		chromedp.Sleep(1*time.Second),
		chromedp.SendKeys(`input[name="session_key"]`, c.opts.Email, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.SendKeys(`input[name="session_password"]`, c.opts.Password, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.Sleep(5*time.Second),
		chromedp.Location(&landedURL),
	)
	if err != nil {
		c.state = StateUnauthenticated
		return fmt.Errorf("login navigation: %w", err)
	}

	switch {
	case strings.Contains(landedURL, "/checkpoint"):
		c.state = StateCheckpointBlocked
		c.log.Error("checkpoint challenge after login submit", "url", landedURL)
		return ErrAuthenticationBlocked
	case strings.Contains(landedURL, "/login"):
		c.state = StateUnauthenticated
		return errors.New("login failed: still on login page, check credentials")
	}

	c.state = StateAuthenticated
	c.log.Info("login successful", "url", landedURL)
	return nil
}

// FetchProfile navigates to a profile page and extracts its raw fields.
// Valid only from Authenticated; the pacing policy is consulted before each
// network-visible sub-action. A redirect back to login marks the session
// Expired and returns ErrSessionExpired.
func (c *Controller) FetchProfile(ctx context.Context, profileURL string) (*models.RawProfile, error) {
	if c.state != StateAuthenticated {
		return nil, errNotAuthenticated
	}

	if err := c.opts.Pace.Wait(ctx); err != nil {
		return nil, err
	}

	tctx, cancel := c.opTimeout(ctx, 2)
	defer cancel()

	var currentURL string
	err := chromedp.Run(tctx,
		chromedp.Navigate(profileURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Location(&currentURL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: navigate %s: %v", ErrFetch, profileURL, err)
	}
	if expired(currentURL) {
		c.state = StateExpired
		c.log.Error("redirected to login mid-run", "url", currentURL)
		return nil, ErrSessionExpired
	}

	if err := c.opts.Pace.Wait(ctx); err != nil {
		return nil, err
	}

	raw := &models.RawProfile{ProfileURL: profileURL}
	err = chromedp.Run(tctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Scroll so lazily rendered sections attach to the DOM
			for i := 0; i < 3; i++ {
				chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil).Do(ctx)
				chromedp.Sleep(1500 * time.Millisecond).Do(ctx)
			}
			return nil
		}),
		chromedp.Evaluate(extractProfileJS, raw),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: extract %s: %v", ErrFetch, profileURL, err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: no profile fields found at %s", ErrFetch, profileURL)
	}
	return raw, nil
}

// CaptureDocument produces a PDF snapshot of the profile surface. Failure
// here is independent of field extraction; callers treat it as a
// partial-success condition, not a fetch failure.
func (c *Controller) CaptureDocument(ctx context.Context, profileURL string) ([]byte, string, error) {
	if c.state != StateAuthenticated {
		return nil, "", errNotAuthenticated
	}

	if err := c.opts.Pace.Wait(ctx); err != nil {
		return nil, "", err
	}

	tctx, cancel := c.opTimeout(ctx, 2)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(tctx,
		chromedp.Navigate(profileURL),
		chromedp.Sleep(2*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var currentURL string
			if err := chromedp.Location(&currentURL).Do(ctx); err != nil {
				return err
			}
			if expired(currentURL) {
				return ErrSessionExpired
			}
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if errors.Is(err, ErrSessionExpired) {
		c.state = StateExpired
		return nil, "", ErrSessionExpired
	}
	if err != nil {
		return nil, "", fmt.Errorf("capture %s: %w", profileURL, err)
	}
	return pdf, "application/pdf", nil
}

// Close terminates the session and the browser.
func (c *Controller) Close() {
	c.state = StateTerminated
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) opTimeout(ctx context.Context, factor int) (context.Context, context.CancelFunc) {
	// chromedp actions must run on the browser context; honor caller
	// cancellation by watching ctx alongside it
	tctx, cancel := context.WithTimeout(c.ctx, time.Duration(factor)*c.opts.PageTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func expired(currentURL string) bool {
	return strings.Contains(currentURL, "/login") ||
		strings.Contains(currentURL, "/uas/login") ||
		strings.Contains(currentURL, "/authwall")
}

// extractProfileJS pulls profile fields with several selector strategies per
// field, since the site rotates DOM class names between layouts.
const extractProfileJS = `
(() => {
	const textOf = (selectors, root) => {
		for (const sel of selectors) {
			const el = (root || document).querySelector(sel);
			if (el && el.textContent.trim()) {
				return el.textContent.trim();
			}
		}
		return '';
	};

	const name = textOf([
		'h1.text-heading-xlarge',
		'h1.inline.t-24',
		'main h1'
	]);
	const headline = textOf([
		'div.text-body-medium.break-words',
		'.pv-text-details__left-panel .text-body-medium',
		'.top-card-layout__headline'
	]);
	const location = textOf([
		'span.text-body-small.inline.t-black--light.break-words',
		'.pv-text-details__left-panel--full-width span.text-body-small',
		'.top-card__subline-item'
	]);

	const sectionItems = (id) => {
		const anchor = document.querySelector('section > div#' + id) ||
			document.querySelector('section[id="' + id + '"]');
		const section = anchor ? anchor.closest('section') || anchor : null;
		if (!section) return [];
		return Array.from(section.querySelectorAll('li.artdeco-list__item')).slice(0, 10);
	};

	const experiences = sectionItems('experience').map(item => ({
		title: textOf(['span.t-14.t-bold span[aria-hidden="true"]', 'span.t-14.t-bold', '.t-bold'], item),
		company: textOf(['span.t-14.t-normal span[aria-hidden="true"]', 'span.t-14.t-normal'], item),
		duration: textOf(['span.t-14.t-normal.t-black--light span[aria-hidden="true"]', 'span.t-14.t-normal.t-black--light'], item),
		location: textOf(['span.t-14.t-normal.t-black--light:nth-of-type(2) span[aria-hidden="true"]'], item),
		employment_type: ''
	})).filter(e => e.company || e.title);

	const educations = sectionItems('education').map(item => ({
		institution: textOf(['span.t-14.t-bold span[aria-hidden="true"]', 'span.t-14.t-bold', '.t-bold'], item),
		degree: textOf(['span.t-14.t-normal span[aria-hidden="true"]', 'span.t-14.t-normal'], item),
		years: textOf(['span.t-14.t-normal.t-black--light span[aria-hidden="true"]', 'span.t-14.t-normal.t-black--light'], item),
		grade: '',
		activities: ''
	})).filter(e => e.institution);

	return {
		profile_url: window.location.href,
		name: name,
		headline: headline,
		location: location,
		email: '',
		experiences: experiences,
		educations: educations
	};
})()
`
