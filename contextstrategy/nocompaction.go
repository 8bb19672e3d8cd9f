package contextstrategy

import (
	"context"

	"github.com/agentrt/neuronloop/model"
)

// NoCompaction never compacts: ShouldCompact always returns false and
// Compact returns the input unchanged. Useful for providers that perform
// their own server-side compaction (StopReason.Compaction) or for tests.
type NoCompaction struct{}

func (NoCompaction) TokenEstimate(messages []model.Message) int { return 0 }

func (NoCompaction) ShouldCompact(messages []model.Message, currentTokens int) bool { return false }

func (NoCompaction) Compact(ctx context.Context, messages []model.Message) ([]model.Message, error) {
	return messages, nil
}
