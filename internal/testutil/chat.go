package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrUnscripted is returned by [Chat] for queries it has no reply for.
var ErrUnscripted = errors.New("no scripted reply")

// Chat is a scripted language-model double. Replies are keyed by query text.
type Chat struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []ChatCall
}

// ChatCall records one Ask call.
type ChatCall struct {
	Instructions string
	Query        string
}

// NewChat returns a chat that answers each key of replies with its value.
func NewChat(replies map[string]string) *Chat {
	if replies == nil {
		replies = make(map[string]string)
	}

	return &Chat{replies: replies}
}

// Ask returns the scripted reply for query.
func (c *Chat) Ask(_ context.Context, instructions, query string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, ChatCall{Instructions: instructions, Query: query})

	reply, ok := c.replies[query]
	if !ok {
		return "", ErrUnscripted
	}

	return reply, nil
}

// Calls returns a copy of the recorded calls.
func (c *Chat) Calls() []ChatCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]ChatCall(nil), c.calls...)
}
