package models

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type KeyLabelPair struct {
	Key   string
	Label string
}

// Options is a list of checkboxes, or radio buttons when isRadio is set. The
// first radio button starts checked.
type Options struct {
	focused     bool
	options     map[string]Checkbox
	order       []string
	active      int
	lastToggled int
	isRadio     bool
	onChange    func(map[string]bool) tea.Msg
	keyBindings
}

type keyBindings struct {
	up    key.Binding
	down  key.Binding
	check key.Binding
}

func NewOptions(isRadio bool, onChange func(map[string]bool) tea.Msg, pairs ...KeyLabelPair) Options {
	options := make(map[string]Checkbox, len(pairs))
	order := make([]string, 0, len(pairs))
	for index, pair := range pairs {
		options[pair.Key] = Checkbox{Label: pair.Label, IsRadio: isRadio}
		order = append(order, pair.Key)
		if isRadio && index == 0 {
			options[pair.Key] = options[pair.Key].Toggle()
		}
	}

	return Options{
		options:     options,
		order:       order,
		active:      0,
		lastToggled: 0,
		focused:     false,
		isRadio:     isRadio,
		onChange:    onChange,
		keyBindings: keyBindings{
			up:    key.NewBinding(key.WithKeys("k", "up")),
			down:  key.NewBinding(key.WithKeys("j", "down")),
			check: key.NewBinding(key.WithKeys(" ", "enter")),
		},
	}
}

func (options Options) Len() int {
	return len(options.order)
}

// State reports every option key with whether it is checked.
func (options Options) State() map[string]bool {
	state := make(map[string]bool, len(options.options))
	for key, checkbox := range options.options {
		state[key] = checkbox.IsChecked()
	}
	return state
}

// Selected is the key of the first checked option, or "" when none is.
func (options Options) Selected() string {
	for _, key := range options.order {
		if options.options[key].IsChecked() {
			return key
		}
	}
	return ""
}

func (options Options) Render() string {
	lines := make([]string, 0, len(options.order))
	for _, key := range options.order {
		lines = append(lines, options.options[key].Render())
	}
	return optionsStyle.Render(strings.Join(lines, "\n"))
}

func (options Options) toggleFocusAt(position int) Options {
	if len(options.options) == 0 {
		return options
	}
	options.options[options.order[position]] = options.options[options.order[position]].ToggleFocus()
	options.active = position
	return options
}

func (options Options) Blur() Options {
	options.focused = false
	if len(options.order) > 0 {
		options.options[options.order[options.active]] = options.options[options.order[options.active]].Blur()
	}
	return options
}

func (options Options) Focus() Options {
	options.focused = true
	if len(options.order) > 0 {
		options.options[options.order[options.active]] = options.options[options.order[options.active]].Focus()
	}
	return options
}

func (options Options) IsFocused() bool {
	return options.focused
}

func (options Options) Update(msg tea.Msg) (Options, tea.Cmd) {
	if !options.focused || len(options.options) == 0 {
		return options, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return options, nil
	}

	switch {
	case key.Matches(keyMsg, options.keyBindings.up):
		if options.active-1 < 0 {
			break
		}
		options = options.toggleFocusAt(options.active).
			toggleFocusAt(options.active - 1)
	case key.Matches(keyMsg, options.keyBindings.down):
		if options.active+1 >= len(options.options) {
			break
		}
		options = options.toggleFocusAt(options.active).
			toggleFocusAt(options.active + 1)
	case key.Matches(keyMsg, options.keyBindings.check):
		if options.isRadio {
			if options.lastToggled == options.active {
				break
			}
			options.options[options.order[options.lastToggled]] = options.options[options.order[options.lastToggled]].Toggle()
			options.lastToggled = options.active
		}
		options.options[options.order[options.active]] = options.options[options.order[options.active]].Toggle()
		if options.onChange != nil {
			state := options.State()
			return options, func() tea.Msg { return options.onChange(state) }
		}
	}
	return options, nil
}
