// Package chat keeps the conversation history and turns it into the
// incremental prompt text fed to the engine on each turn.
package chat

import "github.com/samcharles93/chatloop/internal/engine"

// Role identifies the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message. Turns are never modified after they are appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered turn history, oldest first. Turns are
// expected to alternate user/assistant after an optional system turn; the
// conversation does not enforce it.
type Conversation struct {
	turns []Turn
}

// Append adds a turn to the end of the history.
func (c *Conversation) Append(role Role, content string) {
	c.turns = append(c.turns, Turn{Role: role, Content: content})
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Turns returns a copy of the history.
func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

// Last returns the most recent turn.
func (c *Conversation) Last() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// Reset drops every turn.
func (c *Conversation) Reset() {
	c.turns = c.turns[:0]
}

func (c *Conversation) messages() []engine.Message {
	msgs := make([]engine.Message, len(c.turns))
	for i, t := range c.turns {
		msgs[i] = engine.Message{Role: string(t.Role), Content: t.Content}
	}
	return msgs
}
