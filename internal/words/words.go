// internal/words/words.go
//
// Offline word list validator.
//
// Responsibilities:
//   - Load a word list from WORDS_FILE or fall back to the embedded list in assets.
//   - Answer IsCompleteWord from an in-memory set, applying the same
//     minimum-length fast path as the remote dictionary.
//
// Word lists:
//   - One word per line, lower-cased on load, non-alphabetic lines dropped.
//   - Lines starting with '#' are comments (embedded list only).
//
// The set is immutable after construction, so lookups need no locking.

package words

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"

	"github.com/robalobadob/superghost/assets"
	"github.com/robalobadob/superghost/internal/game"
)

// ListValidator implements Validator over a fixed word set.
type ListValidator struct {
	set map[string]struct{}
}

// NewListValidator builds a validator from the given words.
func NewListValidator(list []string) *ListValidator {
	return &ListValidator{set: toSet(normalize(list))}
}

// LoadListValidator reads path (one word per line) or, if path is empty,
// the embedded list. Returns an error if the resulting list is empty.
func LoadListValidator(path string) (*ListValidator, error) {
	var (
		list []string
		err  error
	)
	if path != "" {
		list, err = readWordFile(path)
	} else {
		list, err = assets.WordList()
	}
	if err != nil {
		return nil, err
	}
	v := NewListValidator(list)
	if len(v.set) == 0 {
		return nil, errors.New("words: word list is empty")
	}
	return v, nil
}

// IsCompleteWord reports whether seq is in the list.
func (v *ListValidator) IsCompleteWord(ctx context.Context, seq string, superghost bool) (bool, error) {
	if len(seq) < game.MinWordLength(superghost) {
		return false, nil
	}
	_, ok := v.set[strings.ToLower(strings.TrimSpace(seq))]
	return ok, nil
}

// Definitions returns a single placeholder meaning for known words; the
// offline list carries no glosses.
func (v *ListValidator) Definitions(ctx context.Context, seq string) ([]Definition, error) {
	w := strings.ToLower(strings.TrimSpace(seq))
	if _, ok := v.set[w]; !ok {
		return []Definition{}, nil
	}
	return []Definition{{Word: w, Definition: "listed in the offline word list"}}, nil
}

// Len reports the number of loaded words.
func (v *ListValidator) Len() int { return len(v.set) }

// readWordFile loads one word per line from a file.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

// normalize lower-cases, trims and keeps only alphabetic words.
func normalize(list []string) []string {
	out := make([]string, 0, len(list))
	for _, line := range list {
		w := strings.TrimSpace(strings.ToLower(line))
		if w != "" && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out
}

// toSet converts a list of strings into a lookup set.
func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
