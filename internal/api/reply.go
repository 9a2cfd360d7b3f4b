package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/huddle/pkg/models"
)

const replyMaxTokens = 1024

// Reply is the text an agent produced.
type Reply struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// ReplyGenerator produces an agent's next message. Implementations may fail
// on network or model errors; every caller handles the error locally.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, agent models.Agent, history []models.Message, contextText string) (Reply, error)
}

// Responder generates agent replies with the Messages API.
type Responder struct {
	client *Client
}

// NewResponder creates a Responder.
func NewResponder(client *Client) *Responder {
	return &Responder{client: client}
}

// GenerateReply asks the model to speak as agent. The persona becomes the
// system prompt; history is rendered as a transcript ahead of contextText.
func (r *Responder) GenerateReply(ctx context.Context, agent models.Agent, history []models.Message, contextText string) (Reply, error) {
	text, usage, err := r.client.complete(ctx, systemPrompt(agent), userPrompt(history, contextText), replyMaxTokens)
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply for %s: %w", agent.ID, err)
	}
	return Reply{
		Text:         strings.TrimSpace(text),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}, nil
}

func systemPrompt(agent models.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the %s.", agent.DisplayName(), agent.Role)
	if agent.Persona != "" {
		b.WriteString(" ")
		b.WriteString(agent.Persona)
	}
	b.WriteString(" Reply with the message you would post, nothing else.")
	return b.String()
}

func userPrompt(history []models.Message, contextText string) string {
	var b strings.Builder
	if t := Transcript(history); t != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString(contextText)
	return b.String()
}

// Transcript renders messages one per line as "[actor] content".
func Transcript(history []models.Message) string {
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s\n", m.ActorID, m.Content)
	}
	return b.String()
}
