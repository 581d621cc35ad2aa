package words

import "context"

// Validator decides whether a letter sequence is a complete word.
// Implementations must be safe for concurrent use.
//
// Errors wrap game.ErrLookupUnavailable when the answer could not be
// established; callers must not read that as "not a word".
type Validator interface {
	IsCompleteWord(ctx context.Context, seq string, superghost bool) (bool, error)
	Definitions(ctx context.Context, seq string) ([]Definition, error)
}

// Definition is one meaning of a word as reported by the dictionary.
type Definition struct {
	Word         string `json:"word"`
	PartOfSpeech string `json:"partOfSpeech,omitempty"`
	Definition   string `json:"definition"`
	Example      string `json:"example,omitempty"`
}
