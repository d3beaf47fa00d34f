package prompt

import "regexp"

// Tokenizer estimates the number of model tokens in a text.
type Tokenizer interface {
	Count(text string) int
}

// TokenizerFunc adapts a function to the Tokenizer interface.
type TokenizerFunc func(text string) int

// Count implements Tokenizer.
func (f TokenizerFunc) Count(text string) int { return f(text) }

var wordOrPunct = regexp.MustCompile(`\w+|[^\w\s]`)

// ApproxTokenizer counts words and individual punctuation marks, which tracks
// linguistic tokenizers closely enough for prompt budgeting.
type ApproxTokenizer struct{}

// Count implements Tokenizer.
func (ApproxTokenizer) Count(text string) int {
	return len(wordOrPunct.FindAllStringIndex(text, -1))
}
