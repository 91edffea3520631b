package models

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"metamakers.org/rfid-access-mqtt/messages"
	"metamakers.org/rfid-access-mqtt/relay"
)

// SignalWindow publishes a one-shot authorization result on RFID_LOGIN when
// an option is picked.
type SignalWindow struct {
	SignalOptions Options
	send          key.Binding
	Window
}

func NewSignalWindow(focused bool, width int) SignalWindow {
	signalOptions := NewOptions(
		true,
		func(state map[string]bool) tea.Msg { return messages.SignalSelectionMessage(state) },
		KeyLabelPair{Key: relay.Grant.Payload(), Label: "Grant (1)"},
		KeyLabelPair{Key: relay.Deny.Payload(), Label: "Deny (0)"},
	)
	signalWindow := SignalWindow{
		SignalOptions: signalOptions,
		send:          key.NewBinding(key.WithKeys("enter")),
		Window: Window{
			focused: focused,
			Margin:  Orientation{1, 0, 0, 0},
			Padding: Orientation{0, 0, 0, 0},
			Border:  Border{false, false, false, true},
		},
	}
	signalWindow.SetDimensions(width, signalOptions.Len())
	return signalWindow
}

func (signalWindow SignalWindow) Focus() SignalWindow {
	signalWindow.Window.Focus()
	signalWindow.SignalOptions = signalWindow.SignalOptions.Focus()
	return signalWindow
}

func (signalWindow SignalWindow) Blur() SignalWindow {
	signalWindow.Window.Blur()
	signalWindow.SignalOptions = signalWindow.SignalOptions.Blur()
	return signalWindow
}

func (signalWindow SignalWindow) Update(msg tea.Msg) (SignalWindow, tea.Cmd) {
	var optionsCmd tea.Cmd
	signalWindow.SignalOptions, optionsCmd = signalWindow.SignalOptions.Update(msg)

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || !signalWindow.IsFocused() || !key.Matches(keyMsg, signalWindow.send) {
		return signalWindow, optionsCmd
	}

	payload := signalWindow.SignalOptions.Selected()
	return signalWindow, tea.Batch(
		optionsCmd,
		func() tea.Msg { return messages.SignalRequest{Payload: payload} },
	)
}

func (signalWindow SignalWindow) Render() string {
	return signalWindow.Window.Render(signalWindow.SignalOptions.Render())
}
