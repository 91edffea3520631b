package models

import "github.com/charmbracelet/lipgloss"

type Orientation struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

func (orientation Orientation) vertical() int {
	return orientation.Top + orientation.Bottom
}

func (orientation Orientation) horizontal() int {
	return orientation.Left + orientation.Right
}

type Border struct {
	Top    bool
	Right  bool
	Bottom bool
	Left   bool
}

func edge(present bool) int {
	if present {
		return 1
	}
	return 0
}

func (border Border) vertical() int {
	return edge(border.Top) + edge(border.Bottom)
}

func (border Border) horizontal() int {
	return edge(border.Left) + edge(border.Right)
}

// Window is the frame every pane draws in. Width and Height exclude margins
// and borders but include padding.
type Window struct {
	Height  int
	Width   int
	Padding Orientation
	Margin  Orientation
	Border  Border
	focused bool
}

func (window *Window) IsFocused() bool {
	return window.focused
}

func (window *Window) Focus() {
	window.focused = true
}

func (window *Window) Blur() {
	window.focused = false
}

func (window *Window) SetHeight(height int) {
	window.Height = max(height-window.Margin.vertical()-window.Border.vertical(), 0)
}

func (window *Window) SetWidth(width int) {
	window.Width = max(width-window.Margin.horizontal()-window.Border.horizontal(), 0)
}

// SetDimensions sizes the window to fill width by height, margins and
// borders included.
func (window *Window) SetDimensions(width int, height int) {
	window.SetWidth(width)
	window.SetHeight(height)
}

func (window *Window) GetInnerWidth() int {
	return max(window.Width-window.Padding.horizontal(), 0)
}

func (window *Window) GetInnerHeight() int {
	return max(window.Height-window.Padding.vertical(), 0)
}

func (window *Window) Render(content ...string) string {
	style := windowStyle.
		Height(window.Height).
		Width(window.Width).
		Margin(window.Margin.Top, window.Margin.Right, window.Margin.Bottom, window.Margin.Left).
		Padding(window.Padding.Top, window.Padding.Right, window.Padding.Bottom, window.Padding.Left).
		Border(
			lipgloss.RoundedBorder(),
			window.Border.Top,
			window.Border.Right,
			window.Border.Bottom,
			window.Border.Left,
		)

	if window.IsFocused() {
		style = style.BorderForeground(focusColor)
	}

	return style.Render(content...)
}
