package view

import (
	"sync"

	"github.com/sells-group/store-locator/internal/locator"
)

// Entry is a rendered list entry.
type Entry struct {
	Handle  locator.Handle  `json:"handle" yaml:"handle"`
	Content locator.Content `json:"content" yaml:"content"`

	onClick func()
}

// List is an in-memory ListView.
type List struct {
	mu      sync.Mutex
	entries []Entry
	next    locator.Handle
}

var _ locator.ListView = (*List)(nil)

// NewList creates an empty List.
func NewList() *List { return &List{} }

// Clear implements locator.ListView.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// AppendEntry implements locator.ListView.
func (l *List) AppendEntry(content locator.Content, onClick func()) locator.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.next
	l.next++
	l.entries = append(l.entries, Entry{Handle: h, Content: content, onClick: onClick})
	return h
}

// Entries returns the rendered entries in order.
func (l *List) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Click simulates a click on the i-th entry. It reports false if no such
// entry exists.
func (l *List) Click(i int) bool {
	l.mu.Lock()
	if i < 0 || i >= len(l.entries) {
		l.mu.Unlock()
		return false
	}
	fn := l.entries[i].onClick
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Banner is an in-memory StatusView and Notifier.
type Banner struct {
	mu      sync.Mutex
	status  locator.Status
	notices []string
}

var (
	_ locator.StatusView = (*Banner)(nil)
	_ locator.Notifier   = (*Banner)(nil)
)

// NewBanner creates an empty Banner.
func NewBanner() *Banner { return &Banner{} }

// SetStatus implements locator.StatusView.
func (b *Banner) SetStatus(s locator.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

// Status returns the current banner.
func (b *Banner) Status() locator.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Notify implements locator.Notifier.
func (b *Banner) Notify(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, message)
}

// Notices returns every blocking notice raised so far.
func (b *Banner) Notices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.notices))
	copy(out, b.notices)
	return out
}
