package schema

// Messages is the ordered list of messages exchanged with the LLM.
// It owns typed append methods so callers never assemble raw slices.
type Messages struct {
	Messages []Message
}

// NewMessages returns a Messages initialised with the given messages.
// Called with no arguments it returns an empty Messages ready for use.
func NewMessages(msgs ...Message) Messages {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Messages{Messages: out}
}

// AddUser appends a plain user message.
func (mh *Messages) AddUser(text string) {
	mh.Messages = append(mh.Messages, NewUserMessage(text))
}

// AddAssistant appends a plain assistant message.
func (mh *Messages) AddAssistant(text string) {
	mh.Messages = append(mh.Messages, NewAssistantMessage(text))
}

// AddBlocks appends a structured message.
func (mh *Messages) AddBlocks(role Role, blocks []ContentBlock) {
	cp := make([]ContentBlock, len(blocks))
	copy(cp, blocks)
	mh.Messages = append(mh.Messages, Message{Role: role, Blocks: cp})
}

// Prepend inserts msgs before the existing messages, preserving their order.
func (mh *Messages) Prepend(msgs ...Message) {
	out := make([]Message, 0, len(msgs)+len(mh.Messages))
	out = append(out, msgs...)
	mh.Messages = append(out, mh.Messages...)
}

func (mh *Messages) Len() int { return len(mh.Messages) }

// Clone returns a copy of mh with an independent backing slice.
func (mh *Messages) Clone() Messages {
	cloned := make([]Message, len(mh.Messages))
	copy(cloned, mh.Messages)
	return Messages{Messages: cloned}
}
