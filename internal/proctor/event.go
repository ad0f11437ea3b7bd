package proctor

import "time"

// EventKind identifies a raw platform event reported by the test client.
type EventKind string

const (
	EventVisibilityHidden  EventKind = "visibility_hidden"
	EventVisibilityVisible EventKind = "visibility_visible"
	EventBlur              EventKind = "blur"
	EventFocus             EventKind = "focus"
	EventKeyDown           EventKind = "keydown"
	EventCopy              EventKind = "copy"
	EventCut               EventKind = "cut"
	EventPaste             EventKind = "paste"
	EventContextMenu       EventKind = "contextmenu"
	EventFullscreenExit    EventKind = "fullscreen_exit"
	EventFullscreenDenied  EventKind = "fullscreen_denied"
	EventTouchStart        EventKind = "touchstart"
	EventTouchCancel       EventKind = "touchcancel"
	EventResize            EventKind = "resize"
	EventPageHide          EventKind = "pagehide"
)

// Event is one observation from the client. Key and the modifier flags are
// only meaningful for keydown events; Mobile marks events from touch devices.
type Event struct {
	Kind   EventKind `json:"kind" binding:"required"`
	At     time.Time `json:"at"`
	Mobile bool      `json:"mobile,omitempty"`
	Key    string    `json:"key,omitempty"`
	Ctrl   bool      `json:"ctrl,omitempty"`
	Shift  bool      `json:"shift,omitempty"`
	Alt    bool      `json:"alt,omitempty"`
	Meta   bool      `json:"meta,omitempty"`
}

// Class distinguishes how confident a detection is.
type Class string

const (
	// ClassDeterministic detections observed the forbidden action directly.
	ClassDeterministic Class = "deterministic"
	// ClassHeuristic detections inferred the action from side effects and
	// accept occasional false positives in exchange for coverage.
	ClassHeuristic Class = "heuristic"
)

// Action is the detector's verdict on one event. A single event can produce
// several actions, e.g. a tab switch that also trips the screenshot
// heuristic.
type Action struct {
	Class Class `json:"class"`

	// Violation is the log entry to append, empty when the event only
	// cancels input without being logged.
	Violation string `json:"violation,omitempty"`

	// TabSwitch and FullscreenExit bump the corresponding session counters.
	TabSwitch      bool `json:"tab_switch,omitempty"`
	FullscreenExit bool `json:"fullscreen_exit,omitempty"`

	// HardBlock raises the blocking overlay until the student re-enters
	// fullscreen and acknowledges.
	HardBlock bool `json:"hard_block,omitempty"`

	// Suppress cancels the input on the client with no log entry.
	Suppress bool `json:"suppress,omitempty"`

	// RetryIn asks the client to re-request fullscreen after this delay.
	RetryIn time.Duration `json:"retry_in,omitempty"`
}
