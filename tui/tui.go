// Package tui provides the login prompt shown before the editor starts.
package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrLoginAborted is returned when the user quits the prompt.
var ErrLoginAborted = errors.New("login aborted")

// Login prompts for a username and returns it.
func Login() (string, error) {
	p := tea.NewProgram(initialModel())

	m, err := p.StartReturningModel()
	if err != nil {
		return "", err
	}

	final, ok := m.(model)
	if !ok || final.quitting {
		return "", ErrLoginAborted
	}
	return final.textInput.Value(), nil
}

type model struct {
	textInput textinput.Model
	quitting  bool
	done      bool
}

func initialModel() model {
	ti := textinput.New()
	ti.Placeholder = "Username"
	ti.Focus()
	ti.CharLimit = 156
	ti.Width = 20

	return model{textInput: ti}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.textInput.Value() != "" {
				m.done = true
				return m, tea.Quit
			}
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting || m.done {
		return ""
	}
	return fmt.Sprintf(
		"Enter username:\n\n%s\n\n%s\n",
		m.textInput.View(),
		"(esc to quit)",
	)
}
