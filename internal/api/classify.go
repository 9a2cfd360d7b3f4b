package api

import (
	"context"
	"fmt"
	"strings"
)

const classifyMaxTokens = 16

// Classifier asks the model to pick one category for a piece of text. Its
// output is untrusted; callers validate it against the vocabulary.
type Classifier struct {
	client *Client
}

// NewClassifier creates a Classifier.
func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

// Classify returns the model's raw answer for the prompt.
func (c *Classifier) Classify(ctx context.Context, prompt string, allowed []string) (string, error) {
	system := fmt.Sprintf(
		"Classify the customer's request into exactly one of these categories: %s. "+
			"Answer with the category word only. If none fit, answer none.",
		strings.Join(allowed, ", "))

	text, _, err := c.client.complete(ctx, system, prompt, classifyMaxTokens)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return text, nil
}
