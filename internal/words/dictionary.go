// internal/words/dictionary.go
//
// Remote dictionary validator backed by the dictionaryapi.dev REST API.
//
//   GET {base}/api/v2/entries/en/{word}
//     200 → JSON array of entries (word is complete)
//     404 → {"title":"No Definitions Found", ...}
//
// Transport errors, 429 and 5xx responses are retried with a constant
// backoff; once retries are exhausted the error wraps
// game.ErrLookupUnavailable. 404 and undecodable bodies count as "not a
// word" and are never retried.

package words

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"

	"github.com/robalobadob/superghost/internal/game"
)

const DefaultDictionaryURL = "https://api.dictionaryapi.dev"

// DictionaryOptions tunes the remote client.
type DictionaryOptions struct {
	BaseURL string
	Retries uint64        // retries after the first attempt
	Backoff time.Duration // constant delay between attempts
	Timeout time.Duration // per attempt
}

// DictionaryClient implements Validator against dictionaryapi.dev.
type DictionaryClient struct {
	baseURL string
	retries uint64
	backoff time.Duration
	timeout time.Duration
	client  *fasthttp.Client
	logger  zerolog.Logger
}

// NewDictionaryClient builds a client; zero options fall back to
// 3 retries, 1s backoff, 5s timeout.
func NewDictionaryClient(opts DictionaryOptions, logger zerolog.Logger) *DictionaryClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultDictionaryURL
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &DictionaryClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		retries: opts.Retries,
		backoff: opts.Backoff,
		timeout: opts.Timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     64,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		logger: logger.With().Str("component", "dictionary").Logger(),
	}
}

type entry struct {
	Word     string `json:"word"`
	Meanings []struct {
		PartOfSpeech string `json:"partOfSpeech"`
		Definitions  []struct {
			Definition string `json:"definition"`
			Example    string `json:"example"`
		} `json:"definitions"`
	} `json:"meanings"`
}

// errRetryableStatus marks responses worth another attempt.
var errRetryableStatus = errors.New("retryable dictionary status")

// IsCompleteWord reports whether seq is a dictionary word. Sequences
// shorter than the mode's minimum are rejected without a lookup.
func (c *DictionaryClient) IsCompleteWord(ctx context.Context, seq string, superghost bool) (bool, error) {
	if len(seq) < game.MinWordLength(superghost) {
		return false, nil
	}
	entries, err := c.lookup(ctx, seq)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// Definitions returns every meaning of seq; unknown words yield an empty list.
func (c *DictionaryClient) Definitions(ctx context.Context, seq string) ([]Definition, error) {
	entries, err := c.lookup(ctx, seq)
	if err != nil {
		return nil, err
	}
	out := []Definition{}
	for _, e := range entries {
		for _, m := range e.Meanings {
			for _, d := range m.Definitions {
				out = append(out, Definition{
					Word:         e.Word,
					PartOfSpeech: m.PartOfSpeech,
					Definition:   d.Definition,
					Example:      d.Example,
				})
			}
		}
	}
	return out, nil
}

// lookup fetches entries for seq. A nil slice with a nil error means the
// word is unknown (404) or the body could not be decoded.
func (c *DictionaryClient) lookup(ctx context.Context, seq string) ([]entry, error) {
	word := strings.ToLower(strings.TrimSpace(seq))
	if word == "" {
		return nil, nil
	}
	uri := c.baseURL + "/api/v2/entries/en/" + url.PathEscape(word)

	var (
		entries []entry
		attempt int
	)
	b := retry.WithMaxRetries(c.retries, retry.NewConstant(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		status, body, err := c.get(ctx, uri)
		if err != nil {
			c.logger.Warn().Err(err).Str("word", word).Int("attempt", attempt).Msg("dictionary request failed")
			return retry.RetryableError(err)
		}
		switch {
		case status == fasthttp.StatusOK:
			if err := json.Unmarshal(body, &entries); err != nil {
				c.logger.Debug().Err(err).Str("word", word).Msg("undecodable dictionary response")
				entries = nil
			}
			return nil
		case status == fasthttp.StatusNotFound:
			return nil
		case status == fasthttp.StatusTooManyRequests || status >= 500:
			c.logger.Warn().Int("status", status).Str("word", word).Int("attempt", attempt).Msg("dictionary unavailable")
			return retry.RetryableError(fmt.Errorf("%w: %d", errRetryableStatus, status))
		default:
			c.logger.Debug().Int("status", status).Str("word", word).Msg("unexpected dictionary status")
			return nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s after %d attempts: %v", game.ErrLookupUnavailable, word, attempt, err)
	}
	return entries, nil
}

func (c *DictionaryClient) get(ctx context.Context, uri string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}
	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}
