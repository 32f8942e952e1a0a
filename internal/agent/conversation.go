package agent

import (
	"github.com/xkilldash9x/mirror-cli/api/schemas"
)

// Conversation is the append-only message log for one run. The first
// message is always the system instructions and nothing is ever reordered
// or removed. It is owned by a single run and is not safe for concurrent
// writers.
type Conversation struct {
	messages []schemas.Message
}

// NewConversation seeds the log with the system instructions and the goal.
func NewConversation(systemPrompt, goal string) *Conversation {
	return &Conversation{messages: []schemas.Message{
		{Role: schemas.RoleSystem, Content: systemPrompt},
		{Role: schemas.RoleUser, Content: goal},
	}}
}

// Append adds a message at the end of the log.
func (c *Conversation) Append(role schemas.Role, content string) {
	c.messages = append(c.messages, schemas.Message{Role: role, Content: content})
}

// AppendStep adds a serialized directive.
func (c *Conversation) AppendStep(role schemas.Role, step schemas.StepDirective) {
	c.Append(role, step.String())
}

// Messages returns a copy of the log; callers may keep it past later appends.
func (c *Conversation) Messages() []schemas.Message {
	out := make([]schemas.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int { return len(c.messages) }
