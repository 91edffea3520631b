package models

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"metamakers.org/rfid-access-mqtt/commands"
	"metamakers.org/rfid-access-mqtt/messages"
	"metamakers.org/rfid-access-mqtt/mqtt"
)

// StatusWindow owns the broker connection and the controls that publish on
// it.
type StatusWindow struct {
	serverConnection      *mqtt.Managed
	ctx                   context.Context
	clientID              string
	mqttMessages          chan messages.MqttMessage
	mqttConnectionStatus  chan messages.MqttStatus
	tabIndex              int
	maxTabIndex           int
	responder             Responder
	Err                   error
	Spinner               spinner.Model
	IsConnected           bool
	Initialized           bool
	ResponseOptionsWindow ResponseOptionsWindow
	SignalWindow          SignalWindow
	TextInputWindow       TextInputWindow
	Window
}

func NewStatusWindow(ctx context.Context, focused bool) StatusWindow {
	statusSpinner := spinner.New()
	statusSpinner.Spinner = spinner.Dot
	statusSpinner.Style = spinnerStyle

	return StatusWindow{
		ctx:                   ctx,
		mqttConnectionStatus:  make(chan messages.MqttStatus),
		mqttMessages:          make(chan messages.MqttMessage),
		tabIndex:              0,
		maxTabIndex:           2,
		responder:             NewResponder(),
		Spinner:               statusSpinner,
		ResponseOptionsWindow: NewResponseOptionsWindow(false, 0),
		SignalWindow:          NewSignalWindow(false, 0),
		TextInputWindow:       NewTextInputWindow(false, 0),
		Window: Window{
			focused: focused,
			Margin:  Orientation{1, 1, 0, 0},
			Padding: Orientation{1, 2, 1, 2},
			Border:  Border{true, true, true, true},
		},
	}
}

func (statusWindow StatusWindow) Update(msg tea.Msg) (StatusWindow, tea.Cmd) {
	cmds := make([]tea.Cmd, 0)

	switch msg := msg.(type) {
	case messages.MqttCredentials:
		statusWindow.clientID = msg.ClientID
		cmds = append(cmds,
			commands.InitConnection(
				statusWindow.ctx,
				statusWindow.mqttConnectionStatus,
				statusWindow.mqttMessages,
				msg,
			),
			statusWindow.Spinner.Tick,
		)
	case messages.MqttServerConnection:
		if msg.Err != nil {
			statusWindow.Initialized = false
			statusWindow.Err = msg.Err
			break
		}
		statusWindow.Initialized = true
		statusWindow.serverConnection = msg.Connection
		cmds = append(cmds,
			commands.WaitForStatus(statusWindow.mqttConnectionStatus),
			commands.WaitForMessage(statusWindow.mqttMessages),
		)
	case messages.MqttStatus:
		statusWindow.IsConnected = msg.Connected
		statusWindow.Err = msg.Err
		if msg.Connected {
			cmds = append(cmds, commands.CheckIn(statusWindow.serverConnection, statusWindow.ctx, statusWindow.clientID))
		}
		cmds = append(cmds, commands.WaitForStatus(statusWindow.mqttConnectionStatus))
	case messages.MqttMessage:
		if msg.Topic == mqtt.ScanTopic {
			if signal, ok := statusWindow.responder.Respond(msg.Payload); ok {
				cmds = append(cmds, commands.PublishSignal(statusWindow.serverConnection, statusWindow.ctx, signal.Payload()))
			}
		}
		cmds = append(cmds, commands.WaitForMessage(statusWindow.mqttMessages))
	case messages.ResponseOptionsSelectionMessage:
		statusWindow.responder.Mode = statusWindow.ResponseOptionsWindow.Mode()
	case messages.SignalRequest:
		cmds = append(cmds, commands.PublishSignal(statusWindow.serverConnection, statusWindow.ctx, msg.Payload))
	case messages.ScanRequest:
		cmds = append(cmds, commands.PublishScan(statusWindow.serverConnection, statusWindow.ctx, msg.UID))
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if statusWindow.serverConnection != nil {
				statusWindow.serverConnection.Disconnect(statusWindow.ctx)
			}
		} else if msg.Type == tea.KeyTab && statusWindow.IsFocused() {
			statusWindow.tabIndex = (statusWindow.tabIndex + 1) % (statusWindow.maxTabIndex + 1)
		}
	case spinner.TickMsg:
		var spinnerCmd tea.Cmd
		statusWindow.Spinner, spinnerCmd = statusWindow.Spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)
	}

	statusWindow.ResponseOptionsWindow = statusWindow.ResponseOptionsWindow.Blur()
	statusWindow.SignalWindow = statusWindow.SignalWindow.Blur()
	statusWindow.TextInputWindow = statusWindow.TextInputWindow.Blur()
	if statusWindow.Window.IsFocused() {
		switch statusWindow.tabIndex {
		case 0:
			statusWindow.ResponseOptionsWindow = statusWindow.ResponseOptionsWindow.Focus()
		case 1:
			statusWindow.SignalWindow = statusWindow.SignalWindow.Focus()
		case 2:
			statusWindow.TextInputWindow = statusWindow.TextInputWindow.Focus()
		}
	}

	var responseOptionsCmd, signalCmd, textInputCmd tea.Cmd
	statusWindow.ResponseOptionsWindow, responseOptionsCmd = statusWindow.ResponseOptionsWindow.Update(msg)
	statusWindow.SignalWindow, signalCmd = statusWindow.SignalWindow.Update(msg)
	statusWindow.TextInputWindow, textInputCmd = statusWindow.TextInputWindow.Update(msg)
	cmds = append(cmds, responseOptionsCmd, signalCmd, textInputCmd)

	return statusWindow, tea.Batch(cmds...)
}

func (statusWindow StatusWindow) UpdateDimensions(width int, height int) StatusWindow {
	statusWindow.SetDimensions(width, height)
	statusWindow.ResponseOptionsWindow.SetWidth(statusWindow.GetInnerWidth())
	statusWindow.SignalWindow.SetWidth(statusWindow.GetInnerWidth())
	statusWindow.TextInputWindow.SetWidth(statusWindow.GetInnerWidth())
	return statusWindow
}

func (statusWindow *StatusWindow) status() string {
	switch {
	case statusWindow.Err != nil && !statusWindow.Initialized:
		return fmt.Sprintf("%s Failed to start connection manager: %v", statusWindow.Spinner.View(), statusWindow.Err)
	case !statusWindow.Initialized:
		return fmt.Sprintf("%s Starting connection manager", statusWindow.Spinner.View())
	case !statusWindow.IsConnected:
		return fmt.Sprintf("%s Attempting to connect", statusWindow.Spinner.View())
	default:
		return fmt.Sprintf("%s Connected to MQTT Broker as %s", statusWindow.Spinner.View(), statusWindow.clientID)
	}
}

func (statusWindow *StatusWindow) Render() string {
	return statusWindow.Window.Render(
		header.Render("Connection Status"),
		statusText.Render(statusWindow.status()),
		header.MarginTop(2).Render("Answer Scans"),
		statusWindow.ResponseOptionsWindow.Render(),
		header.MarginTop(2).Render("Send Login Signal"),
		statusWindow.SignalWindow.Render(),
		header.MarginTop(2).Render("Scan Card"),
		statusWindow.TextInputWindow.Render(),
	)
}
