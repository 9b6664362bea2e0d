// Package chat implements append-only chat logs shared by rooms and tables.
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/model"
)

// MaxTextLength bounds the length of a player-authored message
const MaxTextLength = 500

// Message is a single chat entry. A non-empty VisibleToUserID restricts the message to that player.
type Message[K ~string] struct {
	ID              string
	AuthorID        model.PlayerID
	AuthorName      string
	Kind            K
	Text            string
	Vars            map[string]string
	VisibleToUserID model.PlayerID
	CreatedAt       time.Time
}

// MessageView is the wire form of a message
type MessageView struct {
	ID         string            `json:"id"`
	AuthorID   string            `json:"author_id,omitempty"`
	AuthorName string            `json:"author_name,omitempty"`
	Kind       string            `json:"kind"`
	Text       string            `json:"text,omitempty"`
	Vars       map[string]string `json:"vars,omitempty"`
	Private    bool              `json:"private,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// UpdatedPayload is the payload of a chat.updated event
type UpdatedPayload struct {
	Scope   model.ChatScope `json:"scope"`
	ScopeID string          `json:"scope_id"`
	Message MessageView     `json:"message"`
}

// View converts a message to its wire form
func (m Message[K]) View() MessageView {
	return MessageView{
		ID:         m.ID,
		AuthorID:   string(m.AuthorID),
		AuthorName: m.AuthorName,
		Kind:       string(m.Kind),
		Text:       m.Text,
		Vars:       m.Vars,
		Private:    m.VisibleToUserID != "",
		CreatedAt:  m.CreatedAt,
	}
}

// Viewer is who is reading a log, with the mute periods they have recorded
type Viewer struct {
	UserID model.PlayerID
	Mutes  []model.MutePeriod
}

// Visible reports whether m should be shown to v
func Visible[K ~string](m Message[K], v Viewer) bool {
	if m.VisibleToUserID != "" && m.VisibleToUserID != v.UserID {
		return false
	}
	if m.AuthorID == "" || m.AuthorID == v.UserID {
		return true
	}
	for _, p := range v.Mutes {
		if p.AuthorID == m.AuthorID && p.Covers(m.CreatedAt) {
			return false
		}
	}
	return true
}

// Log is a bounded, append-only list of messages. It is safe for concurrent use.
type Log[K ~string] struct {
	mu       sync.RWMutex
	clock    clock.Clock
	capacity int
	messages []Message[K]
	onAppend []func(Message[K])
}

// NewLog creates a log that keeps at most capacity messages (0 means unbounded)
func NewLog[K ~string](clk clock.Clock, capacity int) *Log[K] {
	return &Log[K]{clock: clk, capacity: capacity}
}

// OnAppend registers a hook called after every append, outside the log's lock
func (l *Log[K]) OnAppend(fn func(Message[K])) {
	l.mu.Lock()
	l.onAppend = append(l.onAppend, fn)
	l.mu.Unlock()
}

// Post appends a player-authored CHAT-style message after validating its text
func (l *Log[K]) Post(author model.Player, kind K, text string) (Message[K], error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message[K]{}, model.ErrEmptyMessage
	}
	if len(text) > MaxTextLength {
		return Message[K]{}, model.ErrMessageTooLong
	}
	return l.Add(Message[K]{AuthorID: author.ID, AuthorName: author.DisplayName, Kind: kind, Text: text}), nil
}

// Notice appends a system message with template variables, optionally visible to one player only
func (l *Log[K]) Notice(kind K, vars map[string]string, visibleTo model.PlayerID) Message[K] {
	return l.Add(Message[K]{Kind: kind, Vars: vars, VisibleToUserID: visibleTo})
}

// Add appends m, assigning its ID and timestamp
func (l *Log[K]) Add(m Message[K]) Message[K] {
	m.ID = uuid.NewString()
	m.CreatedAt = l.clock.Now()

	l.mu.Lock()
	l.messages = append(l.messages, m)
	if l.capacity > 0 && len(l.messages) > l.capacity {
		l.messages = l.messages[len(l.messages)-l.capacity:]
	}
	hooks := append([]func(Message[K]){}, l.onAppend...)
	l.mu.Unlock()

	for _, fn := range hooks {
		fn(m)
	}
	return m
}

// Restore appends previously persisted messages without firing hooks
func (l *Log[K]) Restore(msgs []Message[K]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msgs...)
	if l.capacity > 0 && len(l.messages) > l.capacity {
		l.messages = l.messages[len(l.messages)-l.capacity:]
	}
}

// All returns every message, oldest first
func (l *Log[K]) All() []Message[K] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Message[K](nil), l.messages...)
}

// Len returns the number of stored messages
func (l *Log[K]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// ForViewer returns the messages v may see, oldest first
func (l *Log[K]) ForViewer(v Viewer) []Message[K] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Message[K]
	for _, m := range l.messages {
		if Visible(m, v) {
			out = append(out, m)
		}
	}
	return out
}

// ToPlainObject projects the log as v sees it
func (l *Log[K]) ToPlainObject(v Viewer) []MessageView {
	msgs := l.ForViewer(v)
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = m.View()
	}
	return out
}

// Record converts m to its persisted form
func Record[K ~string](scope model.ChatScope, scopeID string, m Message[K]) *model.ChatRecord {
	return &model.ChatRecord{
		ID:              m.ID,
		Scope:           scope,
		ScopeID:         scopeID,
		AuthorID:        m.AuthorID,
		AuthorName:      m.AuthorName,
		Kind:            string(m.Kind),
		Text:            m.Text,
		Vars:            m.Vars,
		VisibleToUserID: m.VisibleToUserID,
		CreatedAt:       m.CreatedAt,
	}
}

// FromRecord converts a persisted record back into a message
func FromRecord[K ~string](r *model.ChatRecord) Message[K] {
	return Message[K]{
		ID:              r.ID,
		AuthorID:        r.AuthorID,
		AuthorName:      r.AuthorName,
		Kind:            K(r.Kind),
		Text:            r.Text,
		Vars:            r.Vars,
		VisibleToUserID: r.VisibleToUserID,
		CreatedAt:       r.CreatedAt,
	}
}
