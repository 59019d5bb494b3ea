package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// Tracker evaluates workflows and caches the results per subject.
type Tracker struct {
	cache       cache.CacheWithCounter
	ttl         time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewTracker creates a tracker. A nil cache or zero ttl disables caching;
// concurrency bounds the checks run at once for one evaluation.
func NewTracker(c cache.CacheWithCounter, ttl time.Duration, concurrency int, logger *slog.Logger) *Tracker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Tracker{
		cache:       c,
		ttl:         ttl,
		concurrency: concurrency,
		logger:      logutil.NoopIfNil(logger),
		now:         time.Now,
	}
}

func generationKey(userID string) string { return "progress-gen:" + userID }

func (t *Tracker) cacheKey(ctx context.Context, wf Workflow, subj Subject) (string, bool) {
	if t.cache == nil || t.ttl <= 0 {
		return "", false
	}
	gen, err := t.cache.GetCount(ctx, generationKey(subj.Auth.UserID))
	if err != nil {
		t.logger.Warn("progress generation lookup failed", "error", err)
		return "", false
	}
	return fmt.Sprintf("progress:%s:%s:%d", wf.Name, subj.key(), gen), true
}

// Evaluate runs every stage check of wf for subj and computes progress.
// A failing check is reported as unknown and counts as incomplete.
// The only error returned is the context's.
func (t *Tracker) Evaluate(ctx context.Context, wf Workflow, subj Subject) (*Progress, error) {
	key, cacheable := t.cacheKey(ctx, wf, subj)
	if cacheable {
		if b, err := t.cache.Get(ctx, key); err == nil {
			var p Progress
			if err := json.Unmarshal(b, &p); err == nil {
				return &p, nil
			}
		} else if !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired) {
			t.logger.Warn("progress cache read failed", "error", err)
		}
	}

	results := make([]StageResult, len(wf.Stages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, st := range wf.Stages {
		g.Go(func() error {
			ok, err := st.Check(gctx, subj)
			res := StageResult{ID: st.ID, Key: st.Key, Name: st.Name, Status: StatusIncomplete}
			switch {
			case err != nil:
				res.Status = StatusUnknown
				res.Error = err.Error()
			case ok:
				res.Status = StatusComplete
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make([]bool, len(results))
	for i, r := range results {
		done[i] = r.Status == StatusComplete
		if r.Status == StatusUnknown {
			logutil.Ctx(ctx).Debug("stage check failed", "workflow", wf.Name, "stage", r.Key, "error", r.Error)
		}
	}
	current, completed := Compute(done)

	p := &Progress{
		Workflow:        wf.Name,
		CurrentStage:    current,
		CompletedStages: completed,
		TotalStages:     len(wf.Stages),
		Stages:          results,
		EvaluatedAt:     t.now(),
	}

	if cacheable && !p.hasUnknown() {
		if b, err := json.Marshal(p); err == nil {
			if err := t.cache.Set(ctx, key, b, t.ttl); err != nil {
				t.logger.Warn("progress cache write failed", "error", err)
			}
		}
	}
	return p, nil
}

func (p *Progress) hasUnknown() bool {
	for _, s := range p.Stages {
		if s.Status == StatusUnknown {
			return true
		}
	}
	return false
}

// Invalidate drops every cached result for the user by bumping the user's generation.
func (t *Tracker) Invalidate(ctx context.Context, userID string) {
	if t.cache == nil || t.ttl <= 0 {
		return
	}
	if _, err := t.cache.Increment(ctx, generationKey(userID), 1, cache.TTLGeneration); err != nil {
		t.logger.Warn("progress invalidation failed", "user_id", userID, "error", err)
	}
}
