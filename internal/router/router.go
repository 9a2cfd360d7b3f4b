// Package router maps free-text requests to a service category. A keyword
// table answers most requests; the rest go to a classification delegate whose
// answer is only trusted if it names a known category.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"
)

// ErrUnknownCategory is returned when a keyword maps outside the vocabulary.
var ErrUnknownCategory = errors.New("unknown category")

// Delegate classifies text the keyword table could not. Its output is
// untrusted raw text.
type Delegate interface {
	Classify(ctx context.Context, prompt string, allowed []string) (string, error)
}

// CategoryRouter classifies text into one of a closed set of categories.
type CategoryRouter struct {
	categories []string
	allowed    map[string]bool
	keywords   map[string]string
	delegate   Delegate
}

// NewCategoryRouter builds a router. Every keyword must map to a category in
// the vocabulary. A nil delegate disables the slow path.
func NewCategoryRouter(categories []string, keywords map[string]string, delegate Delegate) (*CategoryRouter, error) {
	r := &CategoryRouter{
		allowed:  make(map[string]bool, len(categories)),
		keywords: make(map[string]string, len(keywords)),
		delegate: delegate,
	}

	for _, c := range categories {
		c = normalize(c)
		if c == "" || r.allowed[c] {
			continue
		}
		r.allowed[c] = true
		r.categories = append(r.categories, c)
	}
	if len(r.categories) == 0 {
		return nil, fmt.Errorf("router needs at least one category")
	}

	for kw, c := range keywords {
		kw, c = normalize(kw), normalize(c)
		if kw == "" {
			continue
		}
		if !r.allowed[c] {
			return nil, fmt.Errorf("keyword %q maps to %q: %w", kw, c, ErrUnknownCategory)
		}
		r.keywords[kw] = c
	}

	return r, nil
}

// Categories returns the vocabulary in configured order.
func (r *CategoryRouter) Categories() []string {
	out := make([]string, len(r.categories))
	copy(out, r.categories)
	return out
}

// Classify returns the category for text and whether one was found. Blank
// text returns immediately. Delegate failures and answers outside the
// vocabulary both count as no match.
func (r *CategoryRouter) Classify(ctx context.Context, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if c, ok := r.lookup(text); ok {
		debugLog("[router] keyword match %q -> %s", text, c)
		return c, true
	}

	if r.delegate == nil {
		return "", false
	}

	raw, err := r.delegate.Classify(ctx, text, r.Categories())
	if err != nil {
		log.Printf("[router] classification delegate failed: %v", err)
		return "", false
	}

	c := cleanAnswer(raw)
	if !r.allowed[c] {
		debugLog("[router] rejected delegate answer %q for %q", raw, text)
		return "", false
	}
	debugLog("[router] delegate match %q -> %s", text, c)
	return c, true
}

// lookup is the keyword fast path: the whole text first, then each token in
// text order, then each token's naive singular.
func (r *CategoryRouter) lookup(text string) (string, bool) {
	norm := normalize(text)
	if c, ok := r.keywords[norm]; ok {
		return c, true
	}

	tokens := strings.FieldsFunc(norm, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	for _, tok := range tokens {
		tok = strings.TrimFunc(tok, isEdgePunct)
		if tok == "" {
			continue
		}
		if c, ok := r.keywords[tok]; ok {
			return c, true
		}
		if len(tok) > 1 && strings.HasSuffix(tok, "s") {
			if c, ok := r.keywords[strings.TrimSuffix(tok, "s")]; ok {
				return c, true
			}
		}
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cleanAnswer strips whitespace, case, quotes and trailing punctuation from a
// delegate answer.
func cleanAnswer(raw string) string {
	return strings.TrimFunc(normalize(raw), func(r rune) bool {
		return unicode.IsSpace(r) || isEdgePunct(r)
	})
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
