package cli

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var stylePrompt = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)

// =============================================================================
// ConfirmModel - y/N prompt
// =============================================================================

// ConfirmModel is the bubbletea model for a yes/no question.
// Anything other than "y" counts as no.
type ConfirmModel struct {
	Prompt   string
	Answered bool
	Yes      bool
}

// NewConfirmModel creates a new confirmation model.
func NewConfirmModel(prompt string) ConfirmModel {
	return ConfirmModel{Prompt: prompt}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.Answered, m.Yes = true, true
		return m, tea.Quit
	case "n", "N", "enter", "q", "esc", "ctrl+c":
		m.Answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	var b strings.Builder
	b.WriteString(stylePrompt.Render(m.Prompt))
	b.WriteString(" " + StyleDim.Render("[y/N]") + " ")
	if m.Answered {
		if m.Yes {
			b.WriteString(StyleSuccess.Render("yes"))
		} else {
			b.WriteString(StyleWarning.Render("no"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// confirm asks prompt on the terminal. Tests replace it.
var confirm = func(ctx context.Context, prompt string) (bool, error) {
	p := tea.NewProgram(NewConfirmModel(prompt), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(ConfirmModel)
	return ok && m.Yes, nil
}
