package proctor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ScreenshotWindow:     3 * time.Second,
		ScreenshotCount:      2,
		TouchCancelMax:       200 * time.Millisecond,
		MobileResizeWindow:   500 * time.Millisecond,
		QuickFocusWindow:     2 * time.Second,
		FullscreenRetryDelay: time.Second,
	}
}

func at(ms int) time.Time {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func TestHiddenLogsTabSwitch(t *testing.T) {
	d := NewDetector(testConfig())

	actions := d.Process(Event{Kind: EventVisibilityHidden, At: at(0)})
	require.Len(t, actions, 1)
	assert.Equal(t, "Tab switch detected", actions[0].Violation)
	assert.True(t, actions[0].TabSwitch)
	assert.Equal(t, ClassDeterministic, actions[0].Class)
	assert.False(t, d.Blocked())
}

func TestBlurCountsAsTabSwitch(t *testing.T) {
	d := NewDetector(testConfig())

	actions := d.Process(Event{Kind: EventBlur, At: at(0)})
	require.Len(t, actions, 1)
	assert.Equal(t, "Window focus lost", actions[0].Violation)
	assert.True(t, actions[0].TabSwitch)
	assert.Equal(t, ClassDeterministic, actions[0].Class)
	assert.False(t, d.Blocked())
}

func TestRepeatedHiddenTripsScreenshotHeuristic(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventVisibilityHidden, At: at(0)})
	actions := d.Process(Event{Kind: EventVisibilityHidden, At: at(2000)})

	require.Len(t, actions, 2)
	assert.Equal(t, "Screenshot attempt suspected", actions[1].Violation)
	assert.Equal(t, ClassHeuristic, actions[1].Class)
	assert.True(t, actions[1].HardBlock)
	assert.True(t, d.Blocked())
}

func TestSpacedHiddenEventsStayBelowThreshold(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventVisibilityHidden, At: at(0)})
	actions := d.Process(Event{Kind: EventVisibilityHidden, At: at(5000)})

	require.Len(t, actions, 1)
	assert.False(t, d.Blocked())
}

func TestQuickFocusFlickerCountsAsSignal(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventVisibilityHidden, At: at(0)})
	d.Process(Event{Kind: EventBlur, At: at(500)})
	actions := d.Process(Event{Kind: EventFocus, At: at(1000)})

	require.Len(t, actions, 1)
	assert.True(t, actions[0].HardBlock)
	assert.True(t, d.Blocked())
}

func TestSlowFocusReturnIsNotASignal(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventBlur, At: at(0)})
	actions := d.Process(Event{Kind: EventFocus, At: at(4000)})
	assert.Empty(t, actions)
	assert.False(t, d.Blocked())
}

func TestMobileTouchCancelGesture(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventTouchStart, At: at(0), Mobile: true})
	actions := d.Process(Event{Kind: EventTouchCancel, At: at(150), Mobile: true})

	require.Len(t, actions, 1)
	assert.Equal(t, "Screenshot gesture detected", actions[0].Violation)
	assert.True(t, actions[0].HardBlock)
	assert.True(t, d.Blocked())
}

func TestSlowTouchCancelIgnored(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventTouchStart, At: at(0), Mobile: true})
	actions := d.Process(Event{Kind: EventTouchCancel, At: at(800), Mobile: true})
	assert.Empty(t, actions)
	assert.False(t, d.Blocked())
}

func TestMobileHiddenBlocksImmediately(t *testing.T) {
	d := NewDetector(testConfig())

	actions := d.Process(Event{Kind: EventVisibilityHidden, At: at(0), Mobile: true})
	require.Len(t, actions, 2)
	assert.True(t, actions[0].TabSwitch)
	assert.Equal(t, "Screenshot attempt suspected", actions[1].Violation)
	assert.Equal(t, ClassHeuristic, actions[1].Class)
	assert.True(t, actions[1].HardBlock)
	assert.True(t, d.Blocked())
}

func TestMobileBlurAndPageHideBlock(t *testing.T) {
	for _, kind := range []EventKind{EventBlur, EventPageHide} {
		d := NewDetector(testConfig())
		actions := d.Process(Event{Kind: kind, At: at(0), Mobile: true})
		require.Len(t, actions, 2, "kind %s", kind)
		assert.True(t, actions[0].TabSwitch, "kind %s", kind)
		assert.True(t, actions[1].HardBlock)
		assert.True(t, d.Blocked())
	}
}

func TestMobileResizeAfterHidden(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventVisibilityHidden, At: at(0), Mobile: true})
	d.AcknowledgeFullscreen()
	require.False(t, d.Blocked())

	actions := d.Process(Event{Kind: EventResize, At: at(300), Mobile: true})
	require.Len(t, actions, 1)
	assert.Equal(t, "Screenshot overlay detected", actions[0].Violation)
	assert.True(t, d.Blocked())
}

func TestDesktopResizeIgnored(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventVisibilityHidden, At: at(0)})
	actions := d.Process(Event{Kind: EventResize, At: at(300)})
	assert.Empty(t, actions)
}

func TestScreenshotKeyCombosHardBlock(t *testing.T) {
	combos := []Event{
		{Kind: EventKeyDown, Key: "PrintScreen"},
		{Kind: EventKeyDown, Key: "s", Meta: true, Shift: true},
		{Kind: EventKeyDown, Key: "3", Meta: true, Shift: true},
		{Kind: EventKeyDown, Key: "4", Meta: true, Shift: true},
	}
	for _, ev := range combos {
		d := NewDetector(testConfig())
		actions := d.Process(ev)
		require.Len(t, actions, 1, "combo %+v", ev)
		assert.Equal(t, "Screenshot attempt detected", actions[0].Violation)
		assert.True(t, actions[0].HardBlock)
		assert.True(t, actions[0].Suppress)
		assert.True(t, d.Blocked())
	}
}

func TestDevToolsCombosLogWithoutBlock(t *testing.T) {
	combos := []Event{
		{Kind: EventKeyDown, Key: "F12"},
		{Kind: EventKeyDown, Key: "i", Ctrl: true, Shift: true},
		{Kind: EventKeyDown, Key: "j", Ctrl: true, Shift: true},
		{Kind: EventKeyDown, Key: "u", Ctrl: true},
	}
	for _, ev := range combos {
		d := NewDetector(testConfig())
		actions := d.Process(ev)
		require.Len(t, actions, 1, "combo %+v", ev)
		assert.Equal(t, "Developer tools shortcut blocked", actions[0].Violation)
		assert.False(t, actions[0].HardBlock)
		assert.False(t, d.Blocked())
	}
}

func TestSystemShortcutsCancelledSilently(t *testing.T) {
	for _, key := range []string{"p", "s", "a", "c", "x"} {
		d := NewDetector(testConfig())
		actions := d.Process(Event{Kind: EventKeyDown, Key: key, Ctrl: true})
		require.Len(t, actions, 1, "key %s", key)
		assert.Empty(t, actions[0].Violation)
		assert.True(t, actions[0].Suppress)
	}
}

func TestPlainTypingIgnored(t *testing.T) {
	d := NewDetector(testConfig())
	assert.Empty(t, d.Process(Event{Kind: EventKeyDown, Key: "a"}))
	assert.Empty(t, d.Process(Event{Kind: EventKeyDown, Key: "Enter"}))
}

func TestClipboardAndContextMenu(t *testing.T) {
	d := NewDetector(testConfig())

	copyActions := d.Process(Event{Kind: EventCopy})
	require.Len(t, copyActions, 1)
	assert.Equal(t, "Copy attempt blocked", copyActions[0].Violation)
	assert.True(t, copyActions[0].Suppress)

	menuActions := d.Process(Event{Kind: EventContextMenu})
	require.Len(t, menuActions, 1)
	assert.Equal(t, "Right-click blocked", menuActions[0].Violation)

	pasteActions := d.Process(Event{Kind: EventPaste})
	require.Len(t, pasteActions, 1)
	assert.Empty(t, pasteActions[0].Violation)
	assert.True(t, pasteActions[0].Suppress)
}

func TestFullscreenExitRequestsRetry(t *testing.T) {
	d := NewDetector(testConfig())

	actions := d.Process(Event{Kind: EventFullscreenExit})
	require.Len(t, actions, 1)
	assert.Equal(t, "Exited fullscreen mode", actions[0].Violation)
	assert.True(t, actions[0].FullscreenExit)
	assert.Equal(t, time.Second, actions[0].RetryIn)
}

func TestFullscreenDeniedCountsAsExit(t *testing.T) {
	d := NewDetector(testConfig())

	actions := d.Process(Event{Kind: EventFullscreenDenied})
	require.Len(t, actions, 1)
	assert.Equal(t, "Fullscreen request denied", actions[0].Violation)
	assert.True(t, actions[0].FullscreenExit)
	assert.Zero(t, actions[0].RetryIn)
	assert.False(t, d.Blocked())
}

func TestAcknowledgeFullscreenClearsBlock(t *testing.T) {
	d := NewDetector(testConfig())

	d.Process(Event{Kind: EventKeyDown, Key: "PrintScreen"})
	require.True(t, d.Blocked())

	d.AcknowledgeFullscreen()
	assert.False(t, d.Blocked())

	// Signal history resets with the acknowledgement.
	actions := d.Process(Event{Kind: EventVisibilityHidden, At: at(0)})
	require.Len(t, actions, 1)
	assert.False(t, d.Blocked())
}
