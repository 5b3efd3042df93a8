package cmd

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"fxq/internal/server"
)

// watchState represents the current view state
type watchState int

const (
	stateLoading watchState = iota
	stateEntries
	stateError
	stateHelp
)

// statusDuration is how long a status message stays visible
const statusDuration = 3 * time.Second

// cacheSource is the part of the server client the watch view needs
type cacheSource interface {
	CacheStats(ctx context.Context) (*server.StatsBody, error)
	CacheEntries(ctx context.Context) ([]server.EntryBody, error)
	FlushCache(ctx context.Context) error
}

// watchModel is the main Bubble Tea model
type watchModel struct {
	state    watchState
	source   cacheSource
	interval time.Duration
	paused   bool
	keys     *KeyDispatcher

	// Latest snapshot
	stats      *server.StatsBody
	entries    []server.EntryBody
	updatedAt  time.Time
	tableModel table.Model

	// UI state
	err    error
	width  int
	height int

	// Vim-style key sequences such as yy
	lastKey string

	statusMessage string
	statusTimeout time.Time

	// Store previous state when showing help
	previousState watchState

	now func() time.Time
}

// Messages for async operations
type snapshotLoadedMsg struct {
	stats   *server.StatsBody
	entries []server.EntryBody
	at      time.Time
}

type cacheFlushedMsg struct {
	flushed int
}

type errorMsg struct {
	err error
}

type tickMsg time.Time

// Commands for async operations
func loadSnapshot(src cacheSource, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		stats, err := src.CacheStats(ctx)
		if err != nil {
			return errorMsg{err}
		}
		entries, err := src.CacheEntries(ctx)
		if err != nil {
			return errorMsg{err}
		}
		return snapshotLoadedMsg{stats: stats, entries: entries, at: time.Now()}
	}
}

func flushCache(src cacheSource, timeout time.Duration, resident int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := src.FlushCache(ctx); err != nil {
			return errorMsg{err}
		}
		return cacheFlushedMsg{flushed: resident}
	}
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
