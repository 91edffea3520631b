package models

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Checkbox struct {
	checked bool
	focused bool
	IsRadio bool
	Label   string
}

func (checkbox Checkbox) Render() string {
	var style lipgloss.Style
	if checkbox.focused {
		style = checkboxHighlightStyle
	} else {
		style = checkboxStyle
	}

	check := " "
	if checkbox.checked && checkbox.IsRadio {
		check = "*"
	} else if checkbox.checked {
		check = "x"
	}

	if checkbox.IsRadio {
		return style.Render(fmt.Sprintf("(%s) %s", check, checkbox.Label))
	}
	return style.Render(fmt.Sprintf("[%s] %s", check, checkbox.Label))
}

func (checkbox Checkbox) IsChecked() bool {
	return checkbox.checked
}

func (checkbox Checkbox) IsFocused() bool {
	return checkbox.focused
}

func (checkbox Checkbox) Toggle() Checkbox {
	checkbox.checked = !checkbox.checked
	return checkbox
}

func (checkbox Checkbox) Focus() Checkbox {
	checkbox.focused = true
	return checkbox
}

func (checkbox Checkbox) Blur() Checkbox {
	checkbox.focused = false
	return checkbox
}

func (checkbox Checkbox) ToggleFocus() Checkbox {
	checkbox.focused = !checkbox.focused
	return checkbox
}
