package models

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"metamakers.org/rfid-access-mqtt/messages"
	"metamakers.org/rfid-access-mqtt/mqtt"
)

// DocumentWindow lays the status window and the log side by side and
// records broker traffic in the log.
type DocumentWindow struct {
	StatusWindow StatusWindow
	LogWindow    LogWindow
	Window
}

func NewDocumentWindow(ctx context.Context, width int, height int) DocumentWindow {
	documentWindow := DocumentWindow{
		StatusWindow: NewStatusWindow(ctx, true),
		LogWindow:    NewLogWindow(),
		Window: Window{
			Margin:  Orientation{0, 0, 0, 0},
			Padding: Orientation{1, 2, 1, 2},
			Border:  Border{false, false, false, false},
		},
	}
	return documentWindow.UpdateDimensions(width, height)
}

func (documentWindow DocumentWindow) UpdateDimensions(width int, height int) DocumentWindow {
	documentWindow.SetDimensions(width, height)
	statusWidth := documentWindow.GetInnerWidth() / 2
	documentWindow.StatusWindow = documentWindow.StatusWindow.UpdateDimensions(statusWidth, documentWindow.GetInnerHeight())
	documentWindow.LogWindow = documentWindow.LogWindow.UpdateDimensions(
		documentWindow.GetInnerWidth()-statusWidth,
		documentWindow.GetInnerHeight(),
	)
	return documentWindow
}

func (documentWindow DocumentWindow) Update(msg tea.Msg) (DocumentWindow, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.MqttServerConnection:
		if msg.Err != nil {
			documentWindow.LogWindow.Error("starting connection manager: %v", msg.Err)
		}
	case messages.MqttStatus:
		if msg.Connected {
			documentWindow.LogWindow.Info("connected to broker")
		} else if msg.Err != nil {
			documentWindow.LogWindow.Warn("broker connection down: %v", msg.Err)
		} else {
			documentWindow.LogWindow.Warn("broker connection down")
		}
	case messages.MqttMessage:
		if clientID, ok := mqtt.ClientIDFromTopic(msg.Topic); ok {
			documentWindow.LogWindow.Info("check-in from %s", clientID)
			break
		}
		documentWindow.LogWindow.Info("%s <- %q", msg.Topic, msg.Payload)
	case messages.PublishMessage:
		if msg.Err != nil {
			documentWindow.LogWindow.Error("%s -> %q failed: %v", msg.Topic, msg.Payload, msg.Err)
			break
		}
		documentWindow.LogWindow.Info("%s -> %q", msg.Topic, msg.Payload)
	case messages.ResponseOptionsSelectionMessage:
		for mode, selected := range msg {
			if selected {
				documentWindow.LogWindow.Info("answering scans: %s", mode)
			}
		}
	}

	var statusCmd, logCmd tea.Cmd
	documentWindow.StatusWindow, statusCmd = documentWindow.StatusWindow.Update(msg)
	documentWindow.LogWindow, logCmd = documentWindow.LogWindow.Update(msg)
	return documentWindow, tea.Batch(statusCmd, logCmd)
}

func (documentWindow *DocumentWindow) Render() string {
	return documentWindow.Window.Render(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			documentWindow.StatusWindow.Render(),
			documentWindow.LogWindow.Render(),
		),
	)
}
