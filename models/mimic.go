package models

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"metamakers.org/rfid-access-mqtt/commands"
	"metamakers.org/rfid-access-mqtt/config"
)

// MimicModel stands in for the scanner, relay and authorizer on a terminal.
type MimicModel struct {
	broker         config.BrokerConfig
	clientID       string
	DocumentWindow DocumentWindow
}

func InitMimicModel(ctx context.Context, broker config.BrokerConfig, clientID string) (MimicModel, error) {
	physicalWidth, physicalHeight, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MimicModel{}, err
	}

	return MimicModel{
		broker:         broker,
		clientID:       clientID,
		DocumentWindow: NewDocumentWindow(ctx, physicalWidth, physicalHeight),
	}, nil
}

func (model MimicModel) UpdateDimensions(width int, height int) MimicModel {
	model.DocumentWindow = model.DocumentWindow.UpdateDimensions(width, height)
	return model
}

func (model MimicModel) Init() tea.Cmd {
	return commands.Init(model.broker, model.clientID)
}

func (model MimicModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model = model.UpdateDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			cmds = append(cmds, tea.Quit)
		}
	}

	var documentWindowCmd tea.Cmd
	model.DocumentWindow, documentWindowCmd = model.DocumentWindow.Update(msg)
	cmds = append(cmds, documentWindowCmd)

	return model, tea.Batch(cmds...)
}

func (model MimicModel) View() string {
	return model.DocumentWindow.Render()
}
