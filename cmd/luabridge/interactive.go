package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabridge"
	"github.com/wippyai/luabridge/proxy"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const maxScrollback = 200

type lineKind int

const (
	lineInput lineKind = iota
	lineOutput
	lineResult
	lineError
	lineInfo
)

type outputLine struct {
	text string
	kind lineKind
}

type interactiveModel struct {
	err     error
	bridge  *luabridge.Bridge
	env     *luabridge.Env
	input   textinput.Model
	lines   []outputLine
	history []string
	histIdx int
	height  int
	busy    bool
}

type loadedMsg struct {
	err error
	env *luabridge.Env
}

type evalResultMsg struct {
	err     error
	printed []string
	results []string
}

func newInteractiveModel(b *luabridge.Bridge) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("lua> ")
	ti.Placeholder = "square:area()"
	ti.Width = 72
	ti.Focus()

	return &interactiveModel{
		bridge: b,
		input:  ti,
		height: 24,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadEnv)
}

func (m *interactiveModel) loadEnv() tea.Msg {
	env := m.bridge.NewEnv()
	if err := exposeHost(env); err != nil {
		env.Close()
		return loadedMsg{err: err}
	}
	return loadedMsg{env: env}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			if m.env != nil {
				m.env.Close()
			}
			return m, tea.Quit

		case "up":
			if len(m.history) > 0 && m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.history)
				m.input.SetValue("")
			}
			return m, nil

		case "enter":
			if m.busy || m.env == nil {
				return m, nil
			}
			src := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if src == "" {
				return m, nil
			}
			m.history = append(m.history, src)
			m.histIdx = len(m.history)
			m.appendLine(lineInput, src)
			if m.command(src) {
				return m, nil
			}
			m.busy = true
			return m, m.eval(src)
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.env = msg.env
		m.appendLine(lineInfo, "globals: square, clicks, greeter, clock, area_of, greet, rect, counter")
		m.appendLine(lineInfo, "type :types for the exposed types, :help for commands")

	case evalResultMsg:
		m.busy = false
		for _, p := range msg.printed {
			m.appendLine(lineOutput, p)
		}
		if msg.err != nil {
			m.appendLine(lineError, msg.err.Error())
		} else if len(msg.results) > 0 {
			m.appendLine(lineResult, strings.Join(msg.results, "\t"))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// command handles REPL commands starting with a colon.
func (m *interactiveModel) command(src string) bool {
	switch src {
	case ":types":
		types := m.bridge.Registry().Types()
		sort.Slice(types, func(i, j int) bool { return types[i].Name() < types[j].Name() })
		for _, td := range types {
			m.appendLine(lineResult, td.Name())
			for _, line := range describeType(td) {
				m.appendLine(lineInfo, "  "+line)
			}
		}
		return true
	case ":clear":
		m.lines = nil
		return true
	case ":help":
		m.appendLine(lineInfo, ":types  list exposed types")
		m.appendLine(lineInfo, ":clear  clear the screen")
		m.appendLine(lineInfo, "expressions print their value, statements run as-is")
		return true
	}
	return false
}

// eval runs src in the env. An expression is tried first so its value can
// be shown; print output is captured.
func (m *interactiveModel) eval(src string) tea.Cmd {
	env := m.env
	return func() tea.Msg {
		L := env.State()
		var printed []string
		prevPrint := L.GetGlobal("print")
		L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
			parts := make([]string, L.GetTop())
			for i := range parts {
				parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
			}
			printed = append(printed, strings.Join(parts, "\t"))
			return 0
		}))
		defer L.SetGlobal("print", prevPrint)

		fn, err := L.LoadString("return " + src)
		if err != nil {
			fn, err = L.LoadString(src)
			if err != nil {
				return evalResultMsg{err: err, printed: printed}
			}
		}

		top := L.GetTop()
		L.Push(fn)
		if err := L.PCall(0, lua.MultRet, nil); err != nil {
			L.SetTop(top)
			return evalResultMsg{err: proxy.Unraise(err), printed: printed}
		}
		var results []string
		for i := top + 1; i <= L.GetTop(); i++ {
			v := L.Get(i)
			results = append(results, formatValue(L, v))
		}
		L.SetTop(top)
		return evalResultMsg{printed: printed, results: results}
	}
}

func formatValue(L *lua.LState, v lua.LValue) string {
	s := L.ToStringMeta(v).String()
	if ud, ok := v.(*lua.LUserData); ok {
		if name, ok := L.GetMetaField(ud, "__type").(lua.LString); ok {
			return s + " " + typeStyle.Render("<"+string(name)+">")
		}
	}
	return s
}

func (m *interactiveModel) appendLine(kind lineKind, text string) {
	for _, l := range strings.Split(text, "\n") {
		m.lines = append(m.lines, outputLine{text: l, kind: kind})
	}
	if over := len(m.lines) - maxScrollback; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}
	if m.env == nil {
		return "Loading host model..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("luabridge"))
	b.WriteString(" ")
	b.WriteString(m.env.ID().String())
	b.WriteString("\n\n")

	visible := max(m.height-6, 1)
	lines := m.lines
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	for _, l := range lines {
		switch l.kind {
		case lineInput:
			b.WriteString(promptStyle.Render("> ") + l.text)
		case lineResult:
			b.WriteString(resultStyle.Render(l.text))
		case lineError:
			b.WriteString(errorStyle.Render(l.text))
		case lineInfo:
			b.WriteString(helpStyle.Render(l.text))
		default:
			b.WriteString(l.text)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.busy {
		b.WriteString(helpStyle.Render("running..."))
	} else {
		b.WriteString(helpStyle.Render("enter run • ↑/↓ history • ctrl+c quit"))
	}
	return b.String()
}

func runInteractive(b *luabridge.Bridge) error {
	p := tea.NewProgram(newInteractiveModel(b), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
