package proctor

import (
	"strings"
	"sync"
	"time"
)

// Config holds the tunable detection thresholds. Defaults live in the
// application config; the zero value is not usable.
type Config struct {
	// ScreenshotWindow and ScreenshotCount drive the desktop screenshot
	// heuristic: this many suspicious visibility signals inside the window
	// raise the hard block.
	ScreenshotWindow time.Duration
	ScreenshotCount  int

	// TouchCancelMax is the longest touchstart-to-touchcancel gap still
	// treated as a mobile screenshot gesture.
	TouchCancelMax time.Duration

	// MobileResizeWindow is how soon after a visibility loss a mobile
	// viewport resize is treated as a screenshot overlay.
	MobileResizeWindow time.Duration

	// QuickFocusWindow is the longest blur-to-focus gap still counted as a
	// screenshot-style flicker rather than a genuine tab switch.
	QuickFocusWindow time.Duration

	// FullscreenRetryDelay is how long the client waits before re-requesting
	// fullscreen after an exit.
	FullscreenRetryDelay time.Duration
}

// Detector classifies raw client events into proctoring actions. One detector
// serves one running attempt; methods are safe for concurrent use.
type Detector struct {
	mu  sync.Mutex
	cfg Config

	signalTimes   []time.Time
	lastHiddenAt  time.Time
	lastBlurAt    time.Time
	lastTouchAt   time.Time
	blocked       bool
	touchTracking bool
}

// NewDetector creates a detector for one attempt.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Blocked reports whether the hard block is currently raised.
func (d *Detector) Blocked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blocked
}

// AcknowledgeFullscreen lowers the hard block after the student re-entered
// fullscreen. The logged violations stay.
func (d *Detector) AcknowledgeFullscreen() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocked = false
	d.signalTimes = nil
}

// Process classifies one event. It returns zero or more actions for the
// caller to apply to the session; the detector itself never touches session
// state.
func (d *Detector) Process(ev Event) []Action {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	switch ev.Kind {
	case EventVisibilityHidden:
		return d.onHidden(ev)
	case EventVisibilityVisible:
		return nil
	case EventBlur:
		d.lastBlurAt = ev.At
		actions := []Action{{
			Class:     ClassDeterministic,
			Violation: "Window focus lost",
			TabSwitch: true,
		}}
		if ev.Mobile {
			actions = append(actions, d.raiseMobileBlock())
		}
		return actions
	case EventFocus:
		return d.onFocus(ev)
	case EventKeyDown:
		return d.onKeyDown(ev)
	case EventCopy:
		return []Action{{Class: ClassDeterministic, Violation: "Copy attempt blocked", Suppress: true}}
	case EventCut:
		return []Action{{Class: ClassDeterministic, Violation: "Cut attempt blocked", Suppress: true}}
	case EventPaste:
		// Cancelled but not logged; paste carries no exam content out.
		return []Action{{Class: ClassDeterministic, Suppress: true}}
	case EventContextMenu:
		return []Action{{Class: ClassDeterministic, Violation: "Right-click blocked", Suppress: true}}
	case EventFullscreenExit:
		return []Action{{
			Class:          ClassDeterministic,
			Violation:      "Exited fullscreen mode",
			FullscreenExit: true,
			RetryIn:        d.cfg.FullscreenRetryDelay,
		}}
	case EventFullscreenDenied:
		// A denied request leaves the test outside fullscreen, the same
		// exposure as an exit.
		return []Action{{
			Class:          ClassDeterministic,
			Violation:      "Fullscreen request denied",
			FullscreenExit: true,
		}}
	case EventTouchStart:
		d.lastTouchAt = ev.At
		d.touchTracking = true
		return nil
	case EventTouchCancel:
		return d.onTouchCancel(ev)
	case EventResize:
		return d.onResize(ev)
	case EventPageHide:
		actions := []Action{{
			Class:     ClassDeterministic,
			Violation: "Page hidden",
			TabSwitch: true,
		}}
		if ev.Mobile {
			actions = append(actions, d.raiseMobileBlock())
		}
		return actions
	}
	return nil
}

// onHidden logs a tab switch and feeds the desktop screenshot heuristic: a
// screenshot tool flashes the page hidden-and-back, so repeated hidden
// signals inside the window raise the hard block.
func (d *Detector) onHidden(ev Event) []Action {
	d.lastHiddenAt = ev.At
	actions := []Action{{
		Class:     ClassDeterministic,
		Violation: "Tab switch detected",
		TabSwitch: true,
	}}
	if ev.Mobile {
		return append(actions, d.raiseMobileBlock())
	}
	if blockAction, ok := d.recordSignal(ev.At); ok {
		actions = append(actions, blockAction)
	}
	return actions
}

// raiseMobileBlock treats any mobile visibility or focus loss as a probable
// screenshot. Mobile capture tools hide the page without a keyboard signal,
// so the block is immediate rather than windowed.
func (d *Detector) raiseMobileBlock() Action {
	d.blocked = true
	return Action{
		Class:     ClassHeuristic,
		Violation: "Screenshot attempt suspected",
		HardBlock: true,
	}
}

// onFocus treats a very quick blur-to-focus flicker as a screenshot signal
// rather than a real tab switch.
func (d *Detector) onFocus(ev Event) []Action {
	if d.lastBlurAt.IsZero() || ev.At.Sub(d.lastBlurAt) > d.cfg.QuickFocusWindow {
		return nil
	}
	d.lastBlurAt = time.Time{}
	if blockAction, ok := d.recordSignal(ev.At); ok {
		return []Action{blockAction}
	}
	return nil
}

// onTouchCancel handles the mobile screenshot gesture: a hardware-button
// screenshot cancels the in-flight touch almost immediately.
func (d *Detector) onTouchCancel(ev Event) []Action {
	if !d.touchTracking {
		return nil
	}
	d.touchTracking = false
	if ev.At.Sub(d.lastTouchAt) > d.cfg.TouchCancelMax {
		return nil
	}
	d.blocked = true
	return []Action{{
		Class:     ClassHeuristic,
		Violation: "Screenshot gesture detected",
		HardBlock: true,
	}}
}

// onResize handles the mobile overlay heuristic: the screenshot preview
// shrinks the viewport right after the page loses visibility.
func (d *Detector) onResize(ev Event) []Action {
	if !ev.Mobile {
		return nil
	}
	if d.lastHiddenAt.IsZero() || ev.At.Sub(d.lastHiddenAt) > d.cfg.MobileResizeWindow {
		return nil
	}
	d.blocked = true
	return []Action{{
		Class:     ClassHeuristic,
		Violation: "Screenshot overlay detected",
		HardBlock: true,
	}}
}

// recordSignal adds one screenshot signal and reports whether the threshold
// was crossed.
func (d *Detector) recordSignal(at time.Time) (Action, bool) {
	cutoff := at.Add(-d.cfg.ScreenshotWindow)
	kept := d.signalTimes[:0]
	for _, t := range d.signalTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	d.signalTimes = append(kept, at)

	if len(d.signalTimes) < d.cfg.ScreenshotCount {
		return Action{}, false
	}
	d.signalTimes = nil
	d.blocked = true
	return Action{
		Class:     ClassHeuristic,
		Violation: "Screenshot attempt suspected",
		HardBlock: true,
	}, true
}

// onKeyDown applies the keyboard rules. Screenshot combos log and hard-block,
// developer tools combos log only, and ordinary system shortcuts are
// cancelled silently.
func (d *Detector) onKeyDown(ev Event) []Action {
	key := strings.ToLower(ev.Key)

	if isScreenshotCombo(ev, key) {
		d.blocked = true
		return []Action{{
			Class:     ClassDeterministic,
			Violation: "Screenshot attempt detected",
			HardBlock: true,
			Suppress:  true,
		}}
	}

	if isDevToolsCombo(ev, key) {
		return []Action{{
			Class:     ClassDeterministic,
			Violation: "Developer tools shortcut blocked",
			Suppress:  true,
		}}
	}

	if isSystemCombo(ev, key) {
		return []Action{{Class: ClassDeterministic, Suppress: true}}
	}

	return nil
}

func isScreenshotCombo(ev Event, key string) bool {
	if key == "printscreen" {
		return true
	}
	// Windows snipping tool.
	if ev.Meta && ev.Shift && key == "s" {
		return true
	}
	// macOS capture shortcuts.
	if ev.Meta && ev.Shift {
		switch key {
		case "3", "4", "5", "6":
			return true
		}
	}
	return false
}

func isDevToolsCombo(ev Event, key string) bool {
	if key == "f12" {
		return true
	}
	if ev.Ctrl && ev.Shift {
		switch key {
		case "i", "j", "c":
			return true
		}
	}
	if ev.Ctrl && key == "u" {
		return true
	}
	return false
}

func isSystemCombo(ev Event, key string) bool {
	if !ev.Ctrl && !ev.Meta {
		return false
	}
	switch key {
	case "p", "s", "a", "c", "x":
		return true
	}
	return false
}
