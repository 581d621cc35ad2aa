package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/superghost/internal/game"
	"github.com/robalobadob/superghost/internal/notify"
	"github.com/robalobadob/superghost/internal/stats"
	"github.com/robalobadob/superghost/internal/store"
	"github.com/robalobadob/superghost/internal/words"
)

type stubValidator struct {
	mu    sync.Mutex
	words map[string]bool
	err   error
	calls int
}

func newStub(list ...string) *stubValidator {
	v := &stubValidator{words: map[string]bool{}}
	for _, w := range list {
		v.words[strings.ToUpper(w)] = true
	}
	return v
}

func (v *stubValidator) IsCompleteWord(ctx context.Context, seq string, superghost bool) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	return v.words[strings.ToUpper(seq)], nil
}

func (v *stubValidator) Definitions(ctx context.Context, seq string) ([]words.Definition, error) {
	if v.err != nil {
		return nil, v.err
	}
	if !v.words[strings.ToUpper(seq)] {
		return []words.Definition{}, nil
	}
	return []words.Definition{{Word: seq, Definition: "a word"}}, nil
}

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) Publish(ctx context.Context, ev notify.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *capture) all() []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Event(nil), c.events...)
}

type results struct {
	mu   sync.Mutex
	seen []stats.Result
}

func (r *results) Record(ctx context.Context, res stats.Result) error {
	r.mu.Lock()
	r.seen = append(r.seen, res)
	r.mu.Unlock()
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc     *Service
	words   *stubValidator
	events  *capture
	results *results
	clock   *clock
}

func newFixture(t *testing.T, opts Options, list ...string) *fixture {
	t.Helper()
	f := &fixture{
		words:   newStub(list...),
		events:  &capture{},
		results: &results{},
		clock:   &clock{t: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = New(store.NewRegistry(), f.words, f.events, f.results, opts, zerolog.Nop()).WithClock(f.clock.now)
	return f
}

// started returns a match with A as player one and B as player two.
func (f *fixture) started(t *testing.T, superghost bool) game.Match {
	t.Helper()
	ctx := context.Background()
	m, err := f.svc.Create(ctx, CreateRequest{PlayerID: "A", Superghost: superghost})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m, err = f.svc.Join(ctx, m.ID, "B", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	return m
}

func TestScenarioCompletedWordLoses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{}, "at")

	m, err := f.svc.Create(ctx, CreateRequest{PlayerID: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Status() != game.StatusOpen || m.ID == "" {
		t.Fatalf("created = %+v", m)
	}
	m, _ = f.svc.Join(ctx, m.ID, "B", nil)
	if m.Status() != game.StatusPlayer2Turn {
		t.Fatalf("after join status = %s", m.Status())
	}
	m, err = f.svc.Append(ctx, m.ID, "B", "t")
	if err != nil || m.Word != "T" || m.Status() != game.StatusPlayer1Turn {
		t.Fatalf("append = %+v, %v", m, err)
	}
	m, err = f.svc.Prepend(ctx, m.ID, "A", "a")
	if err != nil || m.Word != "AT" {
		t.Fatalf("prepend = %+v, %v", m, err)
	}
	m, err = f.svc.LoseWithWord(ctx, m.ID, "A", "AT")
	if err != nil {
		t.Fatalf("loseWithWord: %v", err)
	}
	if m.Status() != game.StatusPlayer2Wins {
		t.Fatalf("status = %s", m.Status())
	}

	evs := f.events.all()
	if len(evs) != 4 {
		t.Fatalf("events = %d, want 4", len(evs))
	}
	last := evs[len(evs)-1]
	if last.Kind != notify.EventUpdate || last.Delta.Player1Wins == nil || *last.Delta.Player1Wins {
		t.Fatalf("last event = %+v", last)
	}
	if len(f.results.seen) != 1 || f.results.seen[0].WinnerID != "B" || f.results.seen[0].Reason != stats.ReasonWord {
		t.Fatalf("results = %+v", f.results.seen)
	}
}

func TestLoseWithWordRejectsNonWord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	m := f.started(t, false)
	m, _ = f.svc.Append(ctx, m.ID, "B", "Q")
	before := len(f.events.all())

	if _, err := f.svc.LoseWithWord(ctx, m.ID, "A", "QZ"); !errors.Is(err, game.ErrInvalidClaim) {
		t.Fatalf("err = %v", err)
	}
	got, _ := f.svc.Get(ctx, m.ID)
	if got.Version != m.Version || len(f.events.all()) != before {
		t.Fatal("rejected claim mutated or published")
	}
}

func TestLookupFailureLeavesMatchUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	m := f.started(t, false)
	m, _ = f.svc.Append(ctx, m.ID, "B", "C")
	m, _ = f.svc.Append(ctx, m.ID, "A", "A")
	f.words.err = errors.New("dial tcp: timeout")

	_, err := f.svc.LoseWithWord(ctx, m.ID, "B", "CAT")
	if !errors.Is(err, game.ErrLookupUnavailable) {
		t.Fatalf("err = %v", err)
	}
	got, _ := f.svc.Get(ctx, m.ID)
	if got.Version != m.Version || got.Status() != m.Status() {
		t.Fatalf("match changed: %+v", got)
	}
	if len(f.results.seen) != 0 {
		t.Fatal("result recorded on lookup failure")
	}
}

func TestTurnErrorsSkipLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	m := f.started(t, false)

	if _, err := f.svc.LoseWithWord(ctx, m.ID, "A", "X"); !errors.Is(err, game.ErrNotYourTurn) {
		t.Fatalf("err = %v", err)
	}
	if f.words.calls != 0 {
		t.Fatalf("lookups = %d", f.words.calls)
	}
}

func TestEnforcedWordCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{EnforceWordCompletion: true}, "cat")
	m := f.started(t, false)
	m, _ = f.svc.Append(ctx, m.ID, "B", "C")
	m, _ = f.svc.Append(ctx, m.ID, "A", "A")

	m, err := f.svc.Append(ctx, m.ID, "B", "T")
	if err != nil {
		t.Fatal(err)
	}
	if m.Word != "CAT" || m.Status() != game.StatusPlayer1Wins {
		t.Fatalf("match = %s %s", m.Word, m.Status())
	}
}

func TestChallengeAnsweredWithWord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{}, "cat")
	m := f.started(t, false)
	m, _ = f.svc.Append(ctx, m.ID, "B", "C")
	m, _ = f.svc.Append(ctx, m.ID, "A", "A")

	m, err := f.svc.Challenge(ctx, m.ID, "B")
	if err != nil || m.Status() != game.StatusPlayer2Challenges {
		t.Fatalf("challenge = %s, %v", m.Status(), err)
	}
	if _, err := f.svc.SubmitWordAfterChallenge(ctx, m.ID, "B", "CAT"); !errors.Is(err, game.ErrNotYourTurn) {
		t.Fatalf("challenger submitted: %v", err)
	}
	m, err = f.svc.SubmitWordAfterChallenge(ctx, m.ID, "A", "cat")
	if err != nil || m.Status() != game.StatusPlayer1Wins {
		t.Fatalf("submit = %s, %v", m.Status(), err)
	}
	r := f.results.seen[0]
	if r.WinnerID != "A" || r.LoserID != "B" || r.Reason != stats.ReasonChallenge || r.Word != "cat" {
		t.Fatalf("result = %+v", r)
	}
}

func TestChallengeAnswerNotContainedSkipsLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{}, "dog")
	m := f.started(t, false)
	m, _ = f.svc.Append(ctx, m.ID, "B", "C")
	m, _ = f.svc.Append(ctx, m.ID, "A", "A")
	m, _ = f.svc.Challenge(ctx, m.ID, "B")

	m, err := f.svc.SubmitWordAfterChallenge(ctx, m.ID, "A", "DOG")
	if err != nil || m.Status() != game.StatusPlayer2Wins {
		t.Fatalf("submit = %s, %v", m.Status(), err)
	}
	if f.words.calls != 0 {
		t.Fatalf("lookups = %d", f.words.calls)
	}
}

func TestYesILied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	m := f.started(t, true)
	m, _ = f.svc.Append(ctx, m.ID, "B", "X")
	m, _ = f.svc.Append(ctx, m.ID, "A", "Q")
	m, _ = f.svc.Challenge(ctx, m.ID, "B")

	m, err := f.svc.YesILiedAfterChallenge(ctx, m.ID, "A")
	if err != nil || m.Status() != game.StatusPlayer2Wins {
		t.Fatalf("concede = %s, %v", m.Status(), err)
	}
	if f.results.seen[0].Reason != stats.ReasonConceded || f.results.seen[0].Word != "XQ" {
		t.Fatalf("result = %+v", f.results.seen[0])
	}
}

func TestRematchRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	old := f.started(t, false)
	old, _ = f.svc.Append(ctx, old.ID, "B", "C")
	old, _ = f.svc.Append(ctx, old.ID, "A", "A")
	old, _ = f.svc.Challenge(ctx, old.ID, "B")
	old, _ = f.svc.YesILiedAfterChallenge(ctx, old.ID, "A")

	next, _ := f.svc.Create(ctx, CreateRequest{PlayerID: "B", Private: true})
	if _, err := f.svc.Rematch(ctx, old.ID, "missing"); !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("rematch to missing: %v", err)
	}
	if _, err := f.svc.Rematch(ctx, old.ID, next.ID); err != nil {
		t.Fatalf("rematch: %v", err)
	}
	got, _ := f.svc.Get(ctx, old.ID)
	if got.RematchMatchID != next.ID || got.Status() != game.StatusRematch {
		t.Fatalf("old = %+v", got)
	}
	fresh, _ := f.svc.Get(ctx, next.ID)
	if fresh.Status() != game.StatusOpen || fresh.Word != "" {
		t.Fatalf("new = %+v", fresh)
	}
}

func TestRematchRequiresFinishedMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	m := f.started(t, false)
	next, _ := f.svc.Create(ctx, CreateRequest{PlayerID: "B"})
	if _, err := f.svc.Rematch(ctx, m.ID, next.ID); !errors.Is(err, game.ErrInvalidMove) {
		t.Fatalf("err = %v", err)
	}
}

func TestQuit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	m := f.started(t, false)

	if err := f.svc.Quit(ctx, m.ID, "Z"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("outsider quit: %v", err)
	}
	if err := f.svc.Quit(ctx, m.ID, "B"); err != nil {
		t.Fatalf("quit: %v", err)
	}
	evs := f.events.all()
	last := evs[len(evs)-1]
	if last.Kind != notify.EventDeleted || last.Reason != notify.ReasonPlayerLeft {
		t.Fatalf("last event = %+v", last)
	}
	if _, err := f.svc.Get(ctx, m.ID); !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("get after quit: %v", err)
	}
	if err := f.svc.Quit(ctx, m.ID, ""); !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("second quit: %v", err)
	}
}

func TestOpenSkipsOwnMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	mine, _ := f.svc.Create(ctx, CreateRequest{PlayerID: "A"})

	if _, err := f.svc.Open(ctx, "A", nil); !errors.Is(err, game.ErrNoOpenMatch) {
		t.Fatalf("err = %v", err)
	}
	got, err := f.svc.Open(ctx, "B", nil)
	if err != nil || got.ID != mine.ID {
		t.Fatalf("open = %+v, %v", got, err)
	}
}

func TestConcurrentAppendsOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	m := f.started(t, false)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, l := range []string{"A", "B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Append(ctx, m.ID, "B", l)
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, game.ErrNotYourTurn):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successful appends = %d", ok)
	}
	got, _ := f.svc.Get(ctx, m.ID)
	if len(got.Word) != 1 {
		t.Fatalf("word = %q", got.Word)
	}
}

func TestDefinitionsLookupFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.words.err = errors.New("boom")
	if _, err := f.svc.Definitions(context.Background(), "cat"); !errors.Is(err, game.ErrLookupUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

// gatedValidator holds the first lookup of hold until release is closed.
type gatedValidator struct {
	*stubValidator
	hold    string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedValidator) IsCompleteWord(ctx context.Context, seq string, superghost bool) (bool, error) {
	if strings.EqualFold(seq, g.hold) {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.stubValidator.IsCompleteWord(ctx, seq, superghost)
}

func TestEnforcedLetterLooksUpCurrentFragment(t *testing.T) {
	ctx := context.Background()
	v := &gatedValidator{
		stubValidator: newStub("cat"),
		hold:          "T",
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	svc := New(store.NewRegistry(), v, &capture{}, &results{}, Options{EnforceWordCompletion: true}, zerolog.Nop())
	m, _ := svc.Create(ctx, CreateRequest{PlayerID: "A"})
	m, _ = svc.Join(ctx, m.ID, "B", nil)

	type outcome struct {
		m   game.Match
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		got, err := svc.Append(ctx, m.ID, "B", "t")
		done <- outcome{got, err}
	}()
	<-v.entered

	// The match moves on while the lookup for "T" is in flight.
	if _, err := svc.Append(ctx, m.ID, "B", "c"); err != nil {
		t.Fatalf("append c: %v", err)
	}
	if _, err := svc.Append(ctx, m.ID, "A", "a"); err != nil {
		t.Fatalf("append a: %v", err)
	}
	close(v.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("delayed append: %v", res.err)
	}
	if res.m.Word != "CAT" || res.m.Status() != game.StatusPlayer1Wins {
		t.Fatalf("match = %s %s", res.m.Word, res.m.Status())
	}
}

func TestEnforcedLetterGivesUpOnBusyMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{EnforceWordCompletion: true})
	m := f.started(t, false)

	// Every commit sees a newer version than the lookup did.
	bumps := 0
	v := &bumpingValidator{stubValidator: f.words, bump: func() {
		bumps++
		_, _ = f.svc.registry.Update(ctx, m.ID, func(m *game.Match) error { m.Version++; return nil }, nil)
	}}
	f.svc.validator = v

	if _, err := f.svc.Append(ctx, m.ID, "B", "c"); !errors.Is(err, ErrMatchChanged) {
		t.Fatalf("err = %v", err)
	}
	if bumps != lookupAttempts {
		t.Fatalf("lookups = %d, want %d", bumps, lookupAttempts)
	}
	got, _ := f.svc.Get(ctx, m.ID)
	if got.Word != "" {
		t.Fatalf("word = %q", got.Word)
	}
}

type bumpingValidator struct {
	*stubValidator
	bump func()
}

func (b *bumpingValidator) IsCompleteWord(ctx context.Context, seq string, superghost bool) (bool, error) {
	b.bump()
	return b.stubValidator.IsCompleteWord(ctx, seq, superghost)
}

func TestCreateRetriesOnlyDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	calls := 0
	f.svc.newID = func() (string, error) {
		calls++
		return "same", nil
	}
	if _, err := f.svc.Create(ctx, CreateRequest{PlayerID: "A"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateRequest{PlayerID: "B"}); err == nil {
		t.Fatal("duplicate id accepted")
	}
	if calls != 1+createAttempts {
		t.Fatalf("id attempts = %d", calls)
	}

	calls = 0
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.svc.Create(cancelled, CreateRequest{PlayerID: "C"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled create: %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancelled create retried %d times", calls)
	}
}
