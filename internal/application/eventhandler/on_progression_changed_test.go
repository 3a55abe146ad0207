package eventhandler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
)

type spyCache struct {
	mu               sync.Mutex
	summaries        []string
	queueInvalidated int
}

func (c *spyCache) GetSummary(context.Context, string) (*progression.Summary, error) {
	return nil, progression.ErrCacheMiss
}
func (c *spyCache) SummaryVersion(context.Context, string) (int64, error) { return 0, nil }
func (c *spyCache) SetSummary(context.Context, string, int64, *progression.Summary) error {
	return nil
}
func (c *spyCache) InvalidateSummary(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, userID)
	return nil
}
func (c *spyCache) GetPendingQueue(context.Context) ([]progression.RecordView, error) {
	return nil, progression.ErrCacheMiss
}
func (c *spyCache) QueueVersion(context.Context) (int64, error) { return 0, nil }
func (c *spyCache) SetPendingQueue(context.Context, int64, []progression.RecordView) error {
	return nil
}
func (c *spyCache) InvalidatePendingQueue(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueInvalidated++
	return nil
}

func TestOnProgressionChanged_Invalidation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		event     shared.Event
		wantQueue int
	}{
		{"started in progress", shared.NewSkillProgressEvent(shared.EventSkillStarted, "r", "u1", "s", "", "IN_PROGRESS", now), 0},
		{"requested validation", shared.NewSkillProgressEvent(shared.EventValidationRequested, "r", "u1", "s", "IN_PROGRESS", "PENDING_VALIDATION", now), 1},
		{"pending removed", shared.NewSkillProgressEvent(shared.EventSkillRemoved, "r", "u1", "s", "PENDING_VALIDATION", "", now), 1},
		{"approved", shared.NewSkillApprovedEvent("r", "u1", "s", "a", now), 1},
		{"level changed", shared.NewAvatarLevelChangedEvent("u1", 1, 2, 3, now), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &spyCache{}
			h := NewOnProgressionChangedHandler(cache, nil, DefaultProgressionChangedConfig())

			require.NoError(t, h.Handle(tt.event))
			assert.Equal(t, []string{"u1"}, cache.summaries)
			assert.Equal(t, tt.wantQueue, cache.queueInvalidated)
		})
	}
}

func TestOnProgressionChanged_NilCache(t *testing.T) {
	h := NewOnProgressionChangedHandler(nil, nil, ProgressionChangedConfig{})
	assert.NoError(t, h.Handle(shared.NewSkillApprovedEvent("r", "u1", "s", "a", time.Now())))
}
