package models

import (
	tea "github.com/charmbracelet/bubbletea"

	"metamakers.org/rfid-access-mqtt/messages"
)

type ResponseOptionsWindow struct {
	ResponseOptions Options
	Window
}

func NewResponseOptionsWindow(focused bool, width int) ResponseOptionsWindow {
	responseOptions := NewOptions(
		true,
		func(state map[string]bool) tea.Msg { return messages.ResponseOptionsSelectionMessage(state) },
		KeyLabelPair{Key: ResponseManual, Label: "Answer scans by hand"},
		KeyLabelPair{Key: ResponseAlwaysGrant, Label: "Grant every scan"},
		KeyLabelPair{Key: ResponseAlwaysDeny, Label: "Deny every scan"},
		KeyLabelPair{Key: ResponseToggle, Label: "Toggle per card"},
	)
	responseOptionsWindow := ResponseOptionsWindow{
		ResponseOptions: responseOptions,
		Window: Window{
			focused: focused,
			Margin:  Orientation{1, 0, 0, 0},
			Padding: Orientation{0, 0, 0, 0},
			Border:  Border{false, false, false, true},
		},
	}
	responseOptionsWindow.SetDimensions(width, responseOptions.Len())
	return responseOptionsWindow
}

func (responseOptionsWindow ResponseOptionsWindow) Focus() ResponseOptionsWindow {
	responseOptionsWindow.Window.Focus()
	responseOptionsWindow.ResponseOptions = responseOptionsWindow.ResponseOptions.Focus()
	return responseOptionsWindow
}

func (responseOptionsWindow ResponseOptionsWindow) Blur() ResponseOptionsWindow {
	responseOptionsWindow.Window.Blur()
	responseOptionsWindow.ResponseOptions = responseOptionsWindow.ResponseOptions.Blur()
	return responseOptionsWindow
}

func (responseOptionsWindow ResponseOptionsWindow) Mode() string {
	return responseOptionsWindow.ResponseOptions.Selected()
}

func (responseOptionsWindow ResponseOptionsWindow) Update(msg tea.Msg) (ResponseOptionsWindow, tea.Cmd) {
	var cmd tea.Cmd
	responseOptionsWindow.ResponseOptions, cmd = responseOptionsWindow.ResponseOptions.Update(msg)
	return responseOptionsWindow, cmd
}

func (responseOptionsWindow ResponseOptionsWindow) Render() string {
	return responseOptionsWindow.Window.Render(responseOptionsWindow.ResponseOptions.Render())
}
