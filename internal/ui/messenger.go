package ui

import (
	"fmt"
	"sync"
)

// ask is a pending yes/no question raised by a background controller action.
// The asking goroutine blocks on reply until the dashboard answers.
type ask struct {
	title   string
	message string
	reply   chan bool
}

// messenger implements msg.Messenger for the dashboard. Controller actions
// run on background goroutines (tea commands), so every method is safe to
// call off the UI goroutine: notes and questions are buffered here and the
// dashboard drains them on its tick.
type messenger struct {
	mu      sync.Mutex
	notes   []string
	pending *ask

	progressMu    sync.Mutex
	progressSeen  bool
	progressBytes int64
	progressTotal int64
}

func newMessenger() *messenger {
	return &messenger{}
}

func (m *messenger) Info(title, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, message)
}

func (m *messenger) Error(title, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, fmt.Sprintf("%s: %s", title, message))
}

// Confirm parks the question for the dashboard and blocks until answered.
func (m *messenger) Confirm(title, message string) bool {
	a := &ask{title: title, message: message, reply: make(chan bool, 1)}
	m.mu.Lock()
	m.pending = a
	m.mu.Unlock()
	return <-a.reply
}

// drainNotes returns and clears buffered messages.
func (m *messenger) drainNotes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := m.notes
	m.notes = nil
	return notes
}

// takeAsk returns the pending question, if any, leaving it cleared so the
// dashboard presents it exactly once.
func (m *messenger) takeAsk() *ask {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.pending
	m.pending = nil
	return a
}

// setProgress records download progress; invoked from the download goroutine.
func (m *messenger) setProgress(downloaded, total int64) {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	m.progressSeen = true
	m.progressBytes = downloaded
	m.progressTotal = total
}

// progress reports the latest download progress and whether any was seen.
func (m *messenger) progress() (downloaded, total int64, seen bool) {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	return m.progressBytes, m.progressTotal, m.progressSeen
}

// resetProgress clears the meter between downloads.
func (m *messenger) resetProgress() {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	m.progressSeen = false
	m.progressBytes = 0
	m.progressTotal = 0
}
