package churn

import (
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter sizes text against the conversation budget.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter approximates one token per four characters.
type EstimateCounter struct{}

// Count implements TokenCounter.
func (EstimateCounter) Count(text string) int {
	return utf8.RuneCountInString(text)/4 + 1
}

// TiktokenCounter counts cl100k_base tokens.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, eris.Wrap(err, "churn: load cl100k_base encoding")
	}
	return &TiktokenCounter{codec: codec}, nil
}

// Count implements TokenCounter. Encoding failures fall back to the
// character estimate.
func (c *TiktokenCounter) Count(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return EstimateCounter{}.Count(text)
	}
	return len(ids)
}

// NewTokenCounter returns the counter named in configuration: "tiktoken" or
// the estimate (default).
func NewTokenCounter(name string) (TokenCounter, error) {
	switch name {
	case "", "estimate":
		return EstimateCounter{}, nil
	case "tiktoken":
		return NewTiktokenCounter()
	default:
		return nil, eris.Errorf("churn: unknown token counter %q", name)
	}
}
