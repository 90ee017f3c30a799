// Package pipeline runs one coaching session end to end: resolve the
// player, fetch and compact their recent matches, ask the model for a
// report, then print and persist it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"flashcoach/internal/compactor"
	"flashcoach/internal/report"
	"flashcoach/internal/riot"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reportHeader = "--- COACHING REPORT ---"
	reportFooter = "-----------------------"

	dedupFalsePositiveRate = 1e-9
)

// ErrNoMatches is returned when none of the listed matches include the player
var ErrNoMatches = errors.New("no matches found for player")

// MatchSource is the subset of the Riot client the pipeline needs
type MatchSource interface {
	ResolveAccount(ctx context.Context, gameName, tagLine string, region riot.Region) (*riot.Identity, error)
	ListMatchIDs(ctx context.Context, puuid string, region riot.Region, count int) ([]string, error)
	FetchMatch(ctx context.Context, matchID string, region riot.Region) (*riot.Match, error)
}

// ModelSelector picks the coaching model; it never fails
type ModelSelector interface {
	Select(ctx context.Context) string
}

// ReportGenerator turns compacted matches into report text
type ReportGenerator interface {
	Generate(ctx context.Context, model string, matches []compactor.CompactedMatch) (string, error)
}

// Checkpoint persists compacted matches between runs
type Checkpoint interface {
	Load(ctx context.Context, puuid string) (map[string]compactor.CompactedMatch, error)
	Save(ctx context.Context, puuid string, position int, record compactor.CompactedMatch) error
	LoadAbsent(ctx context.Context, puuid string) (map[string]bool, error)
	SaveAbsent(ctx context.Context, puuid string, position int, matchID string) error
	Clear(ctx context.Context, puuid string) error
}

// ReportWriter saves the rendered report and returns where it went
type ReportWriter interface {
	Write(r *report.Report) (string, error)
}

// Notifier announces a finished report
type Notifier interface {
	SendReport(ctx context.Context, r *report.Report) error
}

// Config wires a Pipeline. Source, Selector, Generator and Writer are
// required; the rest are optional and skipped when nil.
type Config struct {
	Source    MatchSource
	Selector  ModelSelector
	Generator ReportGenerator
	Writer    ReportWriter

	Checkpoint Checkpoint
	Archive    report.Archive
	Notifier   Notifier
	Copy       func(text string) error

	Workers int
	Out     io.Writer
	Logger  *zap.Logger
}

// Input is what the user asked for
type Input struct {
	GameName string
	TagLine  string
	Region   riot.Region
	Count    int
}

// Pipeline sequences the coaching stages
type Pipeline struct {
	cfg       Config
	compactor *compactor.Compactor
	logger    *zap.Logger

	outMu sync.Mutex
}

func New(cfg Config) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		compactor: compactor.New(cfg.Logger),
		logger:    cfg.Logger,
	}
}

// Run executes every stage in order. Any stage failure aborts the rest;
// failures while persisting the finished report are only logged.
func (p *Pipeline) Run(ctx context.Context, in Input) (*report.Report, error) {
	p.printf("Looking up Riot ID: %s#%s (%s)...\n", in.GameName, in.TagLine, in.Region)
	identity, err := p.cfg.Source.ResolveAccount(ctx, in.GameName, in.TagLine, in.Region)
	if err != nil {
		return nil, err
	}
	p.printf("  Found PUUID: %s\n", identity.PUUID)

	p.printf("Fetching last %d matches...\n", in.Count)
	matchIDs, err := p.cfg.Source.ListMatchIDs(ctx, identity.PUUID, in.Region, in.Count)
	if err != nil {
		return nil, err
	}
	matchIDs = p.dedup(matchIDs)
	p.printf("  Found %d matches\n", len(matchIDs))

	matches, err := p.collect(ctx, identity.PUUID, in.Region, matchIDs)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}
	p.printf("Compacted %d matches\n", len(matches))

	model := p.cfg.Selector.Select(ctx)
	p.printf("Generating coaching report with %s...\n", model)
	body, err := p.cfg.Generator.Generate(ctx, model, matches)
	if err != nil {
		return nil, err
	}

	r := report.New(*identity, in.Region, model, matches, body)
	p.printf("\n%s\n\n%s\n\n%s\n", reportHeader, body, reportFooter)

	p.persist(ctx, r)
	return r, nil
}

// dedup drops repeated ids, keeping the first occurrence.
// The filter is probabilistic: a false positive drops a distinct match.
// Listings hold at most riot.MaxMatchCount ids, so at dedupFalsePositiveRate
// that loss has odds around 1e-7 per run; an exact set would remove it
// entirely at the cost of one map entry per id.
func (p *Pipeline) dedup(ids []string) []string {
	seen := bloom.NewWithEstimates(uint(len(ids)+1), dedupFalsePositiveRate)
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen.TestString(id) {
			p.logger.Debug("duplicate match id dropped", zap.String("matchId", id))
			continue
		}
		seen.AddString(id)
		unique = append(unique, id)
	}
	return unique
}

// collect fetches and compacts matchIDs with a bounded worker pool.
// Results keep listing order; checkpointed matches are not refetched.
func (p *Pipeline) collect(ctx context.Context, puuid string, region riot.Region, matchIDs []string) ([]compactor.CompactedMatch, error) {
	done, absent := p.loadCheckpoint(ctx, puuid)

	results := make([]*compactor.CompactedMatch, len(matchIDs))
	skip := make([]bool, len(matchIDs))
	resumed := 0
	for i, id := range matchIDs {
		if record, ok := done[id]; ok {
			results[i] = &record
			skip[i] = true
			resumed++
		} else if absent[id] {
			skip[i] = true
			resumed++
		}
	}
	if resumed > 0 {
		p.printf("  Resuming: %d matches already processed\n", resumed)
	}

	var fetched int
	var fetchedMu sync.Mutex
	remaining := len(matchIDs) - resumed

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, id := range matchIDs {
		if skip[i] {
			continue
		}
		g.Go(func() error {
			match, err := p.cfg.Source.FetchMatch(gctx, id, region)
			if err != nil {
				return err
			}

			fetchedMu.Lock()
			fetched++
			n := fetched
			fetchedMu.Unlock()
			p.printf("  [%d/%d] Fetched %s\n", n, remaining, id)

			record, ok := p.compactor.Compact(match, puuid)
			if !ok {
				if p.cfg.Checkpoint != nil {
					if err := p.cfg.Checkpoint.SaveAbsent(gctx, puuid, i, id); err != nil {
						p.logger.Warn("failed to checkpoint match", zap.String("matchId", id), zap.Error(err))
					}
				}
				return nil
			}
			results[i] = record

			if p.cfg.Checkpoint != nil {
				if err := p.cfg.Checkpoint.Save(gctx, puuid, i, *record); err != nil {
					p.logger.Warn("failed to checkpoint match", zap.String("matchId", id), zap.Error(err))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]compactor.CompactedMatch, 0, len(results))
	for _, record := range results {
		if record != nil {
			matches = append(matches, *record)
		}
	}
	return matches, nil
}

// loadCheckpoint returns compacted records and ids known not to include puuid.
// An unreadable checkpoint means everything is fetched again.
func (p *Pipeline) loadCheckpoint(ctx context.Context, puuid string) (map[string]compactor.CompactedMatch, map[string]bool) {
	if p.cfg.Checkpoint == nil {
		return nil, nil
	}

	done, err := p.cfg.Checkpoint.Load(ctx, puuid)
	if err != nil {
		p.logger.Warn("checkpoint unavailable, fetching everything", zap.Error(err))
		return nil, nil
	}
	absent, err := p.cfg.Checkpoint.LoadAbsent(ctx, puuid)
	if err != nil {
		p.logger.Warn("checkpoint unavailable, fetching everything", zap.Error(err))
		return nil, nil
	}
	return done, absent
}

// persist saves the report everywhere configured. None of these can fail the run.
func (p *Pipeline) persist(ctx context.Context, r *report.Report) {
	if path, err := p.cfg.Writer.Write(r); err != nil {
		p.logger.Error("failed to save report", zap.Error(err))
	} else {
		p.printf("Report saved to: %s\n", path)
	}

	if p.cfg.Archive != nil {
		if err := p.cfg.Archive.Save(ctx, r); err != nil {
			p.logger.Error("failed to archive report", zap.String("runId", r.RunID), zap.Error(err))
		} else {
			p.logger.Info("report archived", zap.String("runId", r.RunID))
		}
	}

	if p.cfg.Copy != nil {
		if err := p.cfg.Copy(r.Body); err != nil {
			p.logger.Warn("failed to copy report to clipboard", zap.Error(err))
		} else {
			p.printf("Report copied to clipboard\n")
		}
	}

	if p.cfg.Notifier != nil {
		if err := p.cfg.Notifier.SendReport(ctx, r); err != nil {
			p.logger.Warn("failed to post report to Discord", zap.Error(err))
		}
	}

	if p.cfg.Checkpoint != nil {
		if err := p.cfg.Checkpoint.Clear(ctx, r.Player.PUUID); err != nil {
			p.logger.Warn("failed to clear checkpoint", zap.Error(err))
		}
	}
}

func (p *Pipeline) printf(format string, args ...interface{}) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.cfg.Out, format, args...)
}
