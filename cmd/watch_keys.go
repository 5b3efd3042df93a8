package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"fxq/internal/utils"
)

// KeyHandler interface for handling specific key combinations
type KeyHandler interface {
	HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd)
}

// KeyDispatcher routes key presses based on the current state
type KeyDispatcher struct {
	handlers map[string]KeyHandler
}

// NewKeyDispatcher creates a new key dispatcher with all handlers
func NewKeyDispatcher() *KeyDispatcher {
	return &KeyDispatcher{
		handlers: map[string]KeyHandler{
			"q":      &quitHandler{},
			"ctrl+c": &quitHandler{},
			"?":      &helpHandler{},
			"esc":    &escapeHandler{},
			"r":      &refreshHandler{},
			"p":      &pauseHandler{},
			"F":      &flushHandler{},
			"y":      &yankHandler{},
		},
	}
}

// Dispatch handles a key press by routing to the appropriate handler
func (kd *KeyDispatcher) Dispatch(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Any key other than quit and help closes the help overlay
	if m.state == stateHelp {
		switch key {
		case "q", "ctrl+c", "?", "esc":
		default:
			m.state = m.previousState
			m.lastKey = ""
			return m, nil
		}
	}

	if handler, exists := kd.handlers[key]; exists {
		return handler.HandleKey(m, msg)
	}

	m.lastKey = ""
	return m, nil
}

type quitHandler struct{}

func (h *quitHandler) HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.lastKey = ""
	return m, tea.Quit
}

// helpHandler toggles help display
type helpHandler struct{}

func (h *helpHandler) HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == stateHelp {
		m.state = m.previousState
	} else {
		m.previousState = m.state
		m.state = stateHelp
	}
	m.lastKey = ""
	return m, nil
}

type escapeHandler struct{}

func (h *escapeHandler) HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == stateHelp {
		m.state = m.previousState
	}
	m.lastKey = ""
	return m, nil
}

// refreshHandler reloads the snapshot immediately
type refreshHandler struct{}

func (h *refreshHandler) HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.lastKey = ""
	return m, loadSnapshot(m.source, m.interval+requestSlack)
}

// pauseHandler stops and resumes polling
type pauseHandler struct{}

func (h *pauseHandler) HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.lastKey = ""
	m.paused = !m.paused
	if m.paused {
		m.setStatus("Polling paused")
	} else {
		m.setStatus("Polling resumed")
	}
	return m, nil
}

// flushHandler flushes the server cache
type flushHandler struct{}

func (h *flushHandler) HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.lastKey = ""
	return m, flushCache(m.source, m.interval+requestSlack, len(m.entries))
}

// yankHandler copies the selected pair and rate (yy sequence)
type yankHandler struct{}

func (h *yankHandler) HandleKey(m *watchModel, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.lastKey == "y" {
		m.lastKey = ""
		m.copySelected()
		return m, nil
	}
	m.lastKey = "y"
	return m, nil
}

// copySelected copies the selected entry to the clipboard
func (m *watchModel) copySelected() {
	idx := m.tableModel.Cursor()
	if m.state != stateEntries || idx < 0 || idx >= len(m.entries) {
		return
	}
	e := m.entries[idx]
	text := fmt.Sprintf("%s %s", e.Key, utils.FormatRate(e.ExchangeRate))
	if err := utils.CopyToClipboard(text); err != nil {
		m.setStatus("Copy failed: " + err.Error())
		return
	}
	m.setStatus("Copied " + text)
}
