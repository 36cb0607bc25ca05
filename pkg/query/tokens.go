package query

import (
	"github.com/pkoukk/tiktoken-go"
)

// Token budgets for context assembly and response generation.
const (
	contextTokenBudget     = 12000
	mapResponseMaxTokens   = 1000
	reduceResponseMaxTokens = 2000
)

// TokenCounter counts tokens with the o200k_base encoding, matching
// the models served through the chat client.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter creates a TokenCounter.
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}
	return &TokenCounter{encoding: encoding}, nil
}

// Count returns the token count of the text.
func (c *TokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}
