package models

import (
	"errors"
	"regexp"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"metamakers.org/rfid-access-mqtt/card"
	"metamakers.org/rfid-access-mqtt/messages"
)

var hexDigits = regexp.MustCompile(`^[0-9a-fA-F]*$`)

// TextInputWindow takes a card uid and publishes it on RFID_SCAN, as if the
// card had been presented to a scanner.
type TextInputWindow struct {
	TextInput textinput.Model
	Window
}

func NewTextInputWindow(focused bool, width int) TextInputWindow {
	textInput := textinput.New()
	textInput.Placeholder = "04A1B2C3"
	textInput.CharLimit = 20
	textInput.Width = 20
	textInput.Validate = func(value string) error {
		if !hexDigits.MatchString(value) {
			return errors.New("Hex digits only!")
		}
		return nil
	}

	textInputWindow := TextInputWindow{
		TextInput: textInput,
		Window: Window{
			focused: focused,
			Margin:  Orientation{1, 0, 0, 0},
			Padding: Orientation{0, 0, 0, 0},
			Border:  Border{false, false, false, true},
		},
	}
	textInputWindow.SetDimensions(width, 2)
	return textInputWindow
}

func (textInputWindow TextInputWindow) Focus() TextInputWindow {
	textInputWindow.Window.Focus()
	textInputWindow.TextInput.Focus()
	return textInputWindow
}

func (textInputWindow TextInputWindow) Blur() TextInputWindow {
	textInputWindow.Window.Blur()
	textInputWindow.TextInput.Blur()
	return textInputWindow
}

func (textInputWindow TextInputWindow) Update(msg tea.Msg) (TextInputWindow, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && textInputWindow.TextInput.Focused() {
		uid, err := card.ParseUID(textInputWindow.TextInput.Value())
		if err != nil {
			textInputWindow.TextInput.Err = err
			return textInputWindow, nil
		}
		textInputWindow.TextInput.Reset()
		textInputWindow.TextInput.Err = nil
		return textInputWindow, func() tea.Msg { return messages.ScanRequest{UID: uid.String()} }
	}

	var textInputCmd tea.Cmd
	textInputWindow.TextInput, textInputCmd = textInputWindow.TextInput.Update(msg)
	return textInputWindow, textInputCmd
}

func (textInputWindow TextInputWindow) Render() string {
	errorMessage := ""
	if textInputWindow.TextInput.Err != nil {
		errorMessage = errorText.Render(textInputWindow.TextInput.Err.Error())
	}
	return textInputWindow.Window.Render(
		textInputWindow.TextInput.View(),
		"\n",
		errorMessage,
	)
}
