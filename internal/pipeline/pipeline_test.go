package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"flashcoach/internal/checkpoint"
	"flashcoach/internal/compactor"
	"flashcoach/internal/report"
	"flashcoach/internal/riot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testPUUID = "puuid-me"

type fakeSource struct {
	mu sync.Mutex

	resolveErr error
	ids        []string
	listErr    error
	absent     map[string]bool // matches the player did not play in
	failOn     map[string]error

	listCalls int
	fetched   []string
}

func (f *fakeSource) ResolveAccount(ctx context.Context, gameName, tagLine string, region riot.Region) (*riot.Identity, error) {
	if f.resolveErr != nil {
		return nil, riot.NewStageError(riot.StageAccount, f.resolveErr)
	}
	return &riot.Identity{GameName: gameName, TagLine: tagLine, PUUID: testPUUID}, nil
}

func (f *fakeSource) ListMatchIDs(ctx context.Context, puuid string, region riot.Region, count int) ([]string, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, riot.NewStageError(riot.StageHistory, f.listErr)
	}
	if count < len(f.ids) {
		return f.ids[:count], nil
	}
	return f.ids, nil
}

func (f *fakeSource) FetchMatch(ctx context.Context, matchID string, region riot.Region) (*riot.Match, error) {
	if err := ctx.Err(); err != nil {
		se := riot.NewStageError(riot.StageMatch, err)
		se.MatchID = matchID
		return nil, se
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, matchID)
	f.mu.Unlock()

	if err, ok := f.failOn[matchID]; ok {
		se := riot.NewStageError(riot.StageMatch, err)
		se.MatchID = matchID
		return nil, se
	}

	puuid := testPUUID
	if f.absent[matchID] {
		puuid = "someone-else"
	}
	return &riot.Match{
		Metadata: riot.MatchMetadata{MatchID: matchID},
		Info: riot.MatchInfo{
			GameDuration: 1800,
			Participants: []riot.Participant{
				{PUUID: puuid, ChampionName: "Ahri", GoldEarned: 12000, Win: true},
			},
		},
	}, nil
}

func (f *fakeSource) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

type fakeSelector struct{}

func (fakeSelector) Select(ctx context.Context) string { return "gemini-test-flash" }

type fakeGenerator struct {
	err   error
	calls int
	got   []compactor.CompactedMatch
}

func (g *fakeGenerator) Generate(ctx context.Context, model string, matches []compactor.CompactedMatch) (string, error) {
	g.calls++
	g.got = matches
	if g.err != nil {
		return "", riot.NewStageError(riot.StageCoaching, g.err)
	}
	return fmt.Sprintf("## Report\nAnalysed %d matches.", len(matches)), nil
}

type failingWriter struct{}

func (failingWriter) Write(r *report.Report) (string, error) {
	return "", errors.New("disk full")
}

type fakeArchive struct{ saved []*report.Report }

func (a *fakeArchive) Save(ctx context.Context, r *report.Report) error {
	a.saved = append(a.saved, r)
	return nil
}

func (a *fakeArchive) Close() error { return nil }

type fakeNotifier struct{ err error }

func (n *fakeNotifier) SendReport(ctx context.Context, r *report.Report) error { return n.err }

func matchIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("NA1_%d", 5000-i) // newest first
	}
	return ids
}

func openCheckpoint(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.Open(context.Background(), filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testInput(count int) Input {
	return Input{GameName: "Doublelift", TagLine: "NA1", Region: riot.Americas, Count: count}
}

func TestRun_ThirtyMatchesInOrder(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{ids: matchIDs(30)}
	gen := &fakeGenerator{}
	store := openCheckpoint(t)
	reportsDir := t.TempDir()
	var out bytes.Buffer

	p := New(Config{
		Source:     source,
		Selector:   fakeSelector{},
		Generator:  gen,
		Writer:     report.NewWriter(reportsDir),
		Checkpoint: store,
		Workers:    4,
		Out:        &out,
	})

	r, err := p.Run(ctx, testInput(30))
	require.NoError(t, err)

	require.Len(t, r.Matches, 30)
	for i, id := range source.ids {
		assert.Equal(t, id, r.Matches[i].MatchID, "record %d out of order", i)
	}
	assert.Equal(t, r.Matches, gen.got)
	assert.NotEmpty(t, r.Body)
	assert.Equal(t, "gemini-test-flash", r.Model)
	assert.Equal(t, 400.0, r.Matches[0].GoldPerMinute)

	assert.Contains(t, out.String(), "--- COACHING REPORT ---")
	assert.Contains(t, out.String(), "Report saved to: ")

	files, err := filepath.Glob(filepath.Join(reportsDir, "Doublelift_*.md"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	left, err := store.Load(ctx, testPUUID)
	require.NoError(t, err)
	assert.Empty(t, left, "checkpoint should be cleared after a report")
}

func TestRun_SkipsMatchesWithoutPlayer(t *testing.T) {
	source := &fakeSource{
		ids:    []string{"NA1_3", "NA1_2", "NA1_1"},
		absent: map[string]bool{"NA1_2": true},
	}
	p := New(Config{
		Source:    source,
		Selector:  fakeSelector{},
		Generator: &fakeGenerator{},
		Writer:    report.NewWriter(t.TempDir()),
		Workers:   2,
	})

	r, err := p.Run(context.Background(), testInput(3))
	require.NoError(t, err)
	require.Len(t, r.Matches, 2)
	assert.Equal(t, "NA1_3", r.Matches[0].MatchID)
	assert.Equal(t, "NA1_1", r.Matches[1].MatchID)
}

func TestRun_NoMatches(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(Config{
		Source:    &fakeSource{ids: []string{"NA1_1"}, absent: map[string]bool{"NA1_1": true}},
		Selector:  fakeSelector{},
		Generator: gen,
		Writer:    report.NewWriter(t.TempDir()),
	})

	_, err := p.Run(context.Background(), testInput(1))
	assert.ErrorIs(t, err, ErrNoMatches)
	assert.Zero(t, gen.calls)
}

func TestRun_DropsDuplicateIDs(t *testing.T) {
	source := &fakeSource{ids: []string{"NA1_2", "NA1_1", "NA1_2"}}
	p := New(Config{
		Source:    source,
		Selector:  fakeSelector{},
		Generator: &fakeGenerator{},
		Writer:    report.NewWriter(t.TempDir()),
	})

	r, err := p.Run(context.Background(), testInput(3))
	require.NoError(t, err)
	assert.Len(t, r.Matches, 2)
	assert.ElementsMatch(t, []string{"NA1_2", "NA1_1"}, source.fetchedIDs())
}

func TestRun_ResolveFailureStopsEarly(t *testing.T) {
	source := &fakeSource{resolveErr: &riot.APIError{StatusCode: 404}}
	p := New(Config{
		Source:    source,
		Selector:  fakeSelector{},
		Generator: &fakeGenerator{},
		Writer:    report.NewWriter(t.TempDir()),
	})

	_, err := p.Run(context.Background(), testInput(10))
	require.Error(t, err)
	assert.True(t, riot.IsNotFound(err))

	var se *riot.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, riot.StageAccount, se.Stage)
	assert.Zero(t, source.listCalls)
}

func TestRun_HistoryFailure(t *testing.T) {
	p := New(Config{
		Source:    &fakeSource{listErr: &riot.APIError{StatusCode: 500}},
		Selector:  fakeSelector{},
		Generator: &fakeGenerator{},
		Writer:    report.NewWriter(t.TempDir()),
	})

	_, err := p.Run(context.Background(), testInput(10))
	var se *riot.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, riot.StageHistory, se.Stage)
	assert.Equal(t, 500, se.StatusCode)
}

func TestRun_MatchFailureAbortsThenResumes(t *testing.T) {
	ctx := context.Background()
	store := openCheckpoint(t)
	ids := []string{"NA1_3", "NA1_2", "NA1_1"}

	source := &fakeSource{
		ids:    ids,
		failOn: map[string]error{"NA1_2": &riot.APIError{StatusCode: 429}},
	}
	gen := &fakeGenerator{}
	newPipeline := func() *Pipeline {
		return New(Config{
			Source:     source,
			Selector:   fakeSelector{},
			Generator:  gen,
			Writer:     report.NewWriter(t.TempDir()),
			Checkpoint: store,
			Workers:    1,
		})
	}

	_, err := newPipeline().Run(ctx, testInput(3))
	require.Error(t, err)
	assert.True(t, riot.IsRateLimited(err))

	var se *riot.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, riot.StageMatch, se.Stage)
	assert.Equal(t, "NA1_2", se.MatchID)
	assert.Zero(t, gen.calls)

	saved, err := store.Load(ctx, testPUUID)
	require.NoError(t, err)
	assert.Contains(t, saved, "NA1_3")
	assert.NotContains(t, saved, "NA1_2")

	// second run: the first match comes from the checkpoint
	source.failOn = nil
	source.fetched = nil

	r, err := newPipeline().Run(ctx, testInput(3))
	require.NoError(t, err)
	require.Len(t, r.Matches, 3)
	for i, id := range ids {
		assert.Equal(t, id, r.Matches[i].MatchID)
	}
	assert.NotContains(t, source.fetchedIDs(), "NA1_3")
}

func TestRun_ResumeSkipsAbsentMatches(t *testing.T) {
	ctx := context.Background()
	store := openCheckpoint(t)

	source := &fakeSource{
		ids:    []string{"NA1_3", "NA1_2", "NA1_1"},
		absent: map[string]bool{"NA1_3": true},
		failOn: map[string]error{"NA1_2": &riot.APIError{StatusCode: 503}},
	}
	newPipeline := func() *Pipeline {
		return New(Config{
			Source:     source,
			Selector:   fakeSelector{},
			Generator:  &fakeGenerator{},
			Writer:     report.NewWriter(t.TempDir()),
			Checkpoint: store,
			Workers:    1,
		})
	}

	_, err := newPipeline().Run(ctx, testInput(3))
	require.Error(t, err)

	absent, err := store.LoadAbsent(ctx, testPUUID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"NA1_3": true}, absent)

	source.failOn = nil
	source.fetched = nil

	r, err := newPipeline().Run(ctx, testInput(3))
	require.NoError(t, err)
	require.Len(t, r.Matches, 2)
	assert.Equal(t, "NA1_2", r.Matches[0].MatchID)
	assert.Equal(t, "NA1_1", r.Matches[1].MatchID)
	assert.NotContains(t, source.fetchedIDs(), "NA1_3")
}

func TestRun_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	var out bytes.Buffer
	p := New(Config{
		Source:    &fakeSource{ids: matchIDs(2)},
		Selector:  fakeSelector{},
		Generator: gen,
		Writer:    report.NewWriter(t.TempDir()),
		Out:       &out,
	})

	_, err := p.Run(context.Background(), testInput(2))
	var se *riot.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, riot.StageCoaching, se.Stage)
	assert.NotContains(t, out.String(), "--- COACHING REPORT ---")
}

func TestRun_PersistFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	archive := &fakeArchive{}
	var copied string
	var out bytes.Buffer

	p := New(Config{
		Source:    &fakeSource{ids: matchIDs(2)},
		Selector:  fakeSelector{},
		Generator: &fakeGenerator{},
		Writer:    failingWriter{},
		Archive:   archive,
		Notifier:  &fakeNotifier{err: errors.New("webhook down")},
		Copy: func(text string) error {
			copied = text
			return nil
		},
		Out:    &out,
		Logger: zap.New(core),
	})

	r, err := p.Run(context.Background(), testInput(2))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "--- COACHING REPORT ---")
	assert.Equal(t, 1, logs.FilterMessage("failed to save report").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to post report to Discord").Len())
	require.Len(t, archive.saved, 1)
	assert.Equal(t, r.RunID, archive.saved[0].RunID)
	assert.Equal(t, r.Body, copied)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(Config{
		Source:    &fakeSource{ids: matchIDs(5)},
		Selector:  fakeSelector{},
		Generator: &fakeGenerator{},
		Writer:    report.NewWriter(t.TempDir()),
		Workers:   2,
	})

	_, err := p.Run(ctx, testInput(5))
	assert.ErrorIs(t, err, context.Canceled)
}
