package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

type fakeProvider struct {
	err   error
	calls int
}

func (f *fakeProvider) Complete(_ context.Context, _ model.CompletionRequest) (model.CompletionResponse, error) {
	f.calls++
	return model.CompletionResponse{}, f.err
}

func TestBackoffOnRateLimited(t *testing.T) {
	limiter := New(60000, 60000)
	initial := limiter.currentTPM

	fake := &fakeProvider{err: provider.RateLimited("boom", nil)}
	wrapped := limiter.Wrap(fake)

	req := model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "hello"}}}},
	}

	_, err := wrapped.Complete(context.Background(), req)
	require.Error(t, err)
	require.True(t, provider.IsRateLimited(err))

	limiter.mu.Lock()
	after := limiter.currentTPM
	limiter.mu.Unlock()
	require.Less(t, after, initial)
}

func TestProbeRecoversBudgetOnSuccess(t *testing.T) {
	limiter := New(60000, 60000)
	limiter.mu.Lock()
	limiter.currentTPM = limiter.minTPM
	limiter.mu.Unlock()

	fake := &fakeProvider{}
	wrapped := limiter.Wrap(fake)
	req := model.CompletionRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text{Value: "hello"}}}},
	}
	_, err := wrapped.Complete(context.Background(), req)
	require.NoError(t, err)

	limiter.mu.Lock()
	after := limiter.currentTPM
	limiter.mu.Unlock()
	require.Greater(t, after, limiter.minTPM)
}
