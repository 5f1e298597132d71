package output

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/mrpack-downloader/internal/aggregate"
	"github.com/tanq16/mrpack-downloader/internal/fetcher"
)

type entryOutput struct {
	ID        aggregate.EntryID
	Status    string
	Message   string
	StartTime time.Time
	EndTime   time.Time
}

// Manager renders a live view of running and finished entries. It is safe
// for concurrent use by scheduler workers.
type Manager struct {
	mutex       sync.RWMutex
	out         io.Writer
	entries     map[aggregate.EntryID]*entryOutput
	total       int
	finished    int
	failed      int
	numLines    int
	maxDone     int
	startTime   time.Time
	displayTick time.Duration
	doneCh      chan struct{}
	displayWg   sync.WaitGroup
}

func NewManager(total int, out io.Writer) *Manager {
	return &Manager{
		out:         out,
		entries:     make(map[aggregate.EntryID]*entryOutput),
		total:       total,
		maxDone:     8,
		startTime:   time.Now(),
		displayTick: 200 * time.Millisecond,
		doneCh:      make(chan struct{}),
	}
}

func (m *Manager) Started(id aggregate.EntryID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entries[id] = &entryOutput{
		ID:        id,
		Status:    "pending",
		Message:   fmt.Sprintf("Downloading %s", fetcher.FileName(id.Path)),
		StartTime: time.Now(),
	}
}

func (m *Manager) Finished(outcome aggregate.Outcome) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info, exists := m.entries[outcome.ID]
	if !exists {
		info = &entryOutput{ID: outcome.ID, StartTime: time.Now()}
		m.entries[outcome.ID] = info
	}
	info.EndTime = time.Now()
	m.finished++
	if outcome.Status == aggregate.StatusSuccess {
		info.Status = "success"
		info.Message = fmt.Sprintf("Downloaded %s", fetcher.FileName(outcome.ID.Path))
		return
	}
	m.failed++
	info.Status = "error"
	info.Message = fmt.Sprintf("Failed %s (%d mirrors)", outcome.ID.Path, len(outcome.Reasons))
}

func statusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	default:
		return pendingStyle.Render(StyleSymbols["pending"])
	}
}

func styledMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

// render returns the display lines: overall progress, active entries, then
// the most recently finished entries, capped at maxLines.
func (m *Manager) render(width, maxLines int) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var active, done []*entryOutput
	for _, info := range m.entries {
		if info.EndTime.IsZero() {
			active = append(active, info)
		} else {
			done = append(done, info)
		}
	}
	slices.SortFunc(active, func(a, b *entryOutput) int { return a.ID.Index - b.ID.Index })
	slices.SortFunc(done, func(a, b *entryOutput) int { return a.EndTime.Compare(b.EndTime) })
	if len(done) > m.maxDone {
		done = done[len(done)-m.maxDone:]
	}

	elapsed := time.Since(m.startTime).Round(time.Second)
	lines := []string{fmt.Sprintf("%s%s %s",
		strings.Repeat(" ", 2),
		debugStyle.Render(ProgressBar(int64(m.finished), int64(m.total), 30)),
		debugStyle.Render(fmt.Sprintf("%d/%d %s %d failed %s %s", m.finished, m.total, StyleSymbols["bullet"], m.failed, StyleSymbols["bullet"], elapsed)),
	)}
	for _, group := range [][]*entryOutput{active, done} {
		for _, info := range group {
			if len(lines) >= maxLines {
				return lines
			}
			end := info.EndTime
			if end.IsZero() {
				end = time.Now()
			}
			lines = append(lines, fmt.Sprintf("%s%s %s %s",
				strings.Repeat(" ", 2),
				statusIndicator(info.Status),
				debugStyle.Render(end.Sub(info.StartTime).Round(time.Second).String()),
				styledMessage(info.Status, truncate(info.Message, width-16)),
			))
		}
	}
	return lines
}

func (m *Manager) updateDisplay() {
	width, height := terminalSize()
	lines := m.render(width, height-3)
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}
