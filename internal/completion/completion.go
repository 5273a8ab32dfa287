// Package completion defines the chat completion backend used by the guards.
package completion

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable wraps every backend failure, including timeouts.
var ErrUnavailable = errors.New("completion backend unavailable")

// Role is the author of a conversation message.
type Role string

const (
	// RoleUser marks messages written by the player.
	RoleUser Role = "user"
	// RoleAssistant marks earlier guard replies.
	RoleAssistant Role = "assistant"
)

// ParseRole maps a client-supplied role to a Role, ignoring case.
// Only user and assistant are accepted.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(s) {
	case "user":
		return RoleUser, true
	case "assistant":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Message is one turn of the conversation history.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	Model        string
	SystemPrompt string
	History      []Message
	MaxTokens    int
	// User tags the request with the caller for backend-side abuse tracking.
	User string
}

// Completer produces the assistant reply for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
