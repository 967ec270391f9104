// Package conversation holds the bounded dialogue history for the single
// running conversation.
package conversation

import "sync"

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultSystemPrompt is used when no custom system prompt is configured.
const DefaultSystemPrompt = "You are a helpful, concise voice assistant. " +
	"Keep replies short (1-3 sentences) and ask clarifying questions when needed."

// Message is one entry of the conversation. Messages are values and are
// never modified after creation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is a ring buffer of the last maxTurns user/assistant pairs plus the
// system prompt. The system message is kept apart from the history and is
// materialized only by Snapshot. Safe for concurrent use.
type State struct {
	mu           sync.RWMutex
	maxTurns     int
	systemPrompt string
	history      []Message
}

// NewState creates an empty State. A negative maxTurns is treated as zero,
// and an empty systemPrompt selects DefaultSystemPrompt.
func NewState(maxTurns int, systemPrompt string) *State {
	if maxTurns < 0 {
		maxTurns = 0
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &State{
		maxTurns:     maxTurns,
		systemPrompt: systemPrompt,
	}
}

// Reset clears the history. MaxTurns and the system prompt are unchanged.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// AddUser appends a user message and evicts the oldest messages if needed.
func (s *State) AddUser(text string) {
	s.add(Message{Role: RoleUser, Content: text})
}

// AddAssistant appends an assistant message and evicts the oldest messages
// if needed.
func (s *State) AddAssistant(text string) {
	s.add(Message{Role: RoleAssistant, Content: text})
}

// Snapshot returns the system message followed by the history. The returned
// slice is a copy; changing it does not affect the State.
func (s *State) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]Message, 0, len(s.history)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: s.systemPrompt})
	msgs = append(msgs, s.history...)
	return msgs
}

// Len returns the number of stored history messages, excluding the system
// message.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Empty reports whether the history holds no messages.
func (s *State) Empty() bool {
	return s.Len() == 0
}

// MaxTurns returns the configured number of retained turns.
func (s *State) MaxTurns() int {
	return s.maxTurns
}

// SystemPrompt returns the system prompt sent ahead of the history.
func (s *State) SystemPrompt() string {
	return s.systemPrompt
}

func (s *State) add(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	s.trim()
}

// trim drops messages from the oldest end until at most 2*maxTurns remain.
func (s *State) trim() {
	limit := 2 * s.maxTurns
	if excess := len(s.history) - limit; excess > 0 {
		kept := make([]Message, limit)
		copy(kept, s.history[excess:])
		s.history = kept
	}
}
