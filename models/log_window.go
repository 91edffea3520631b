package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

const maxLogLines = 500

type LogWindow struct {
	logs     []string
	now      func() time.Time
	Viewport viewport.Model
	Window
}

func NewLogWindow() LogWindow {
	return LogWindow{
		logs:     make([]string, 0),
		now:      time.Now,
		Viewport: viewport.New(0, 0),
		Window: Window{
			Margin:  Orientation{1, 1, 0, 0},
			Padding: Orientation{1, 2, 1, 2},
			Border:  Border{true, true, true, true},
		},
	}
}

func (logsWindow *LogWindow) Log(prefix string, format string, args ...any) {
	logsWindow.logs = append(
		logsWindow.logs,
		fmt.Sprintf(
			"%s %s: "+format,
			append([]any{logsWindow.now().Format("15:04:05"), prefix}, args...)...,
		),
	)
	if len(logsWindow.logs) > maxLogLines {
		logsWindow.logs = logsWindow.logs[len(logsWindow.logs)-maxLogLines:]
	}
}

func (logsWindow *LogWindow) Info(format string, args ...any) {
	logsWindow.Log("INFO", format, args...)
}

func (logsWindow *LogWindow) Warn(format string, args ...any) {
	logsWindow.Log("WARN", format, args...)
}

func (logsWindow *LogWindow) Error(format string, args ...any) {
	logsWindow.Log("ERROR", format, args...)
}

func (logsWindow *LogWindow) Lines() []string {
	return logsWindow.logs
}

func (logsWindow LogWindow) UpdateDimensions(width int, height int) LogWindow {
	logsWindow.SetDimensions(width, height)
	logsWindow.Viewport.Width = logsWindow.GetInnerWidth()
	logsWindow.Viewport.Height = logsWindow.GetInnerHeight()
	return logsWindow
}

func (logsWindow LogWindow) Update(msg tea.Msg) (LogWindow, tea.Cmd) {
	var cmd tea.Cmd
	logsWindow.Viewport, cmd = logsWindow.Viewport.Update(msg)
	return logsWindow, cmd
}

func (logsWindow *LogWindow) Render() string {
	width := logsWindow.GetInnerWidth()
	lines := make([]string, 0, len(logsWindow.logs))
	for _, line := range logsWindow.logs {
		lines = append(lines, wrap.String(wordwrap.String(line, width), width))
	}
	logsWindow.Viewport.SetContent(strings.Join(lines, "\n"))
	logsWindow.Viewport.GotoBottom()
	return logsWindow.Window.Render(logsWindow.Viewport.View())
}
