// Package selector implements the interactive suggestion picker (C11): a
// bubbletea state machine over a list of command suggestions, plus the
// pure key-handling logic kept separate so it can be tested without a
// terminal.
package selector

import (
	"fmt"
	"os"
	"os/exec"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Risk levels a Suggestion may carry (§3).
const (
	RiskSafe        = "safe"
	RiskModerate    = "moderate"
	RiskDestructive = "destructive"
)

// Suggestion is one candidate command (§3).
type Suggestion struct {
	Command     string
	Title       string
	Explanation string
	Risk        string
}

// ActionKind distinguishes what the user chose to do with a suggestion.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionExecute
	ActionCopy
	ActionEdit
	ActionAbort
)

// Action is the terminal result of running the selector.
type Action struct {
	Kind    ActionKind
	Command string
}

// model is the bubbletea state machine. Its key handling lives in
// handleKey, kept free of tea.Model plumbing so it can be unit tested.
type model struct {
	suggestions []Suggestion
	selected    int
	status      string
	action      Action
	done        bool
}

// handleKey is the pure transition function driving the selector: given
// the current state and a key name, it returns the updated state and,
// when the interaction is over, the resulting Action (§4.11).
func handleKey(m model, key string) (model, Action, bool) {
	m.status = ""

	switch key {
	case "up", "k":
		m.selected = (m.selected - 1 + len(m.suggestions)) % len(m.suggestions)
		return m, Action{}, false
	case "down", "j":
		m.selected = (m.selected + 1) % len(m.suggestions)
		return m, Action{}, false
	case "enter", "a", "A":
		return m, Action{Kind: ActionExecute, Command: m.suggestions[m.selected].Command}, true
	case "K":
		return m, Action{Kind: ActionCopy, Command: m.suggestions[m.selected].Command}, true
	case "b", "B":
		return m, Action{Kind: ActionEdit, Command: m.suggestions[m.selected].Command}, true
	case "esc", "q", "ctrl+c":
		return m, Action{Kind: ActionAbort}, true
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		n := int(key[0] - '0')
		if n <= len(m.suggestions) {
			m.selected = n - 1
		}
		return m, Action{}, false
	}

	return m, Action{}, false
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	next, action, done := handleKey(m, keyMsg.String())
	next.action = action
	next.done = done
	if done {
		return next, tea.Quit
	}
	return next, nil
}

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	riskStyle     = map[string]lipgloss.Style{
		RiskSafe:        lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		RiskModerate:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		RiskDestructive: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

func (m model) View() string {
	var out string
	for i, s := range m.suggestions {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%d. %s  %s", cursor, i+1, s.Title, s.Command)
		style, ok := riskStyle[s.Risk]
		if !ok {
			style = riskStyle[RiskSafe]
		}
		if i == m.selected {
			line = selectedStyle.Render(line)
		} else {
			line = style.Render(line)
		}
		out += line + "\n"
	}
	if m.status != "" {
		out += "\n" + m.status + "\n"
	}
	out += "\n↑/k ↓/j move · enter/a execute · K copy · b edit · esc/q abort\n"
	return out
}

// Run drives the interactive selector over suggestions and returns the
// chosen Action. n=0 must never reach here; n=1 is bypassed by the caller
// (§4.11) — Run assumes len(suggestions) >= 1.
func Run(suggestions []Suggestion) (Action, error) {
	p := tea.NewProgram(model{suggestions: suggestions})
	final, err := p.Run()
	if err != nil {
		return Action{}, err
	}
	m, ok := final.(model)
	if !ok {
		return Action{Kind: ActionAbort}, nil
	}
	if !m.done {
		return Action{Kind: ActionAbort}, nil
	}
	return m.action, nil
}

// RestoreTerminal is installed as a panic recovery hook so a crash mid-TUI
// never leaves the terminal stuck in raw mode (§5 TUI exclusive access): it
// resets the terminal to cooked mode with `stty sane`, then re-raises.
func RestoreTerminal() {
	if r := recover(); r != nil {
		fmt.Fprintln(os.Stderr, "mansage: recovered from panic, restoring terminal")
		stty := exec.Command("stty", "sane")
		stty.Stdin = os.Stdin
		_ = stty.Run()
		panic(r)
	}
}
