package chat

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in a string. Implementations must be stable
// across equal inputs within a process so the buffer math stays
// consistent between turns.
type Tokenizer interface {
	Count(text string) int
}

// TiktokenTokenizer counts tokens with the cl100k_base BPE encoding
// (gpt-4 / gpt-3.5-turbo / text-embedding-ada-002 family).
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the cl100k_base encoding.
func NewTiktokenTokenizer() (*TiktokenTokenizer, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenTokenizer{encoding: encoding}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// HeuristicTokenizer approximates ~4 characters per token for English
// text. Used as a fallback when the BPE vocabulary cannot be loaded.
type HeuristicTokenizer struct{}

func (HeuristicTokenizer) Count(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// NewTokenizer returns the BPE tokenizer, falling back to the heuristic
// one when the encoding is unavailable.
func NewTokenizer() Tokenizer {
	tok, err := NewTiktokenTokenizer()
	if err != nil {
		slog.Warn("failed to load cl100k_base encoding, falling back to heuristic token counting", "error", err)
		return HeuristicTokenizer{}
	}
	return tok
}
