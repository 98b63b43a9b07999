package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
)

// mockClient scripts per-model behavior and records call counts.
type mockClient struct {
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
	failFirst map[string]int // fail this many times before succeeding
}

func newMockClient() *mockClient {
	return &mockClient{
		responses: make(map[string]string),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
		failFirst: make(map[string]int),
	}
}

func (m *mockClient) Generate(_ context.Context, model, _, _ string) (string, error) {
	m.calls[model]++
	if n, ok := m.failFirst[model]; ok && m.calls[model] <= n {
		return "", fmt.Errorf("%w: simulated", common.ErrQuotaExhausted)
	}
	if err, ok := m.errs[model]; ok {
		return "", err
	}
	return m.responses[model], nil
}

func (m *mockClient) Close() error { return nil }

func testScorer(client Client) *Scorer {
	return NewWithClient(Config{
		Model:          "primary-model",
		FallbackModels: []string{"fallback-model"},
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		RateLimit:      10000,
	}, client, slog.Default())
}

func TestScoreChunkSuccess(t *testing.T) {
	client := newMockClient()
	client.responses["primary-model"] = "report text"
	s := testScorer(client)
	defer func() { _ = s.Close() }()

	got, err := s.ScoreChunk(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, "report text", got)
	assert.Equal(t, 1, client.calls["primary-model"])
	assert.Zero(t, client.calls["fallback-model"])
}

func TestScoreChunkRetriesQuotaErrors(t *testing.T) {
	client := newMockClient()
	client.failFirst["primary-model"] = 2
	client.responses["primary-model"] = "eventually"
	s := testScorer(client)
	defer func() { _ = s.Close() }()

	got, err := s.ScoreChunk(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, "eventually", got)
	assert.Equal(t, 3, client.calls["primary-model"])
}

func TestScoreChunkNonQuotaErrorSkipsRetries(t *testing.T) {
	client := newMockClient()
	client.errs["primary-model"] = errors.New("invalid argument")
	client.responses["fallback-model"] = "from fallback"
	s := testScorer(client)
	defer func() { _ = s.Close() }()

	got, err := s.ScoreChunk(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, "from fallback", got)
	// A non-quota failure must not burn the retry budget.
	assert.Equal(t, 1, client.calls["primary-model"])
}

func TestScoreChunkExhaustsFallbackChain(t *testing.T) {
	client := newMockClient()
	client.errs["primary-model"] = errors.New("boom")
	client.errs["fallback-model"] = errors.New("also boom")
	s := testScorer(client)
	defer func() { _ = s.Close() }()

	_, err := s.ScoreChunk(context.Background(), "system", "user")

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
}

func TestScoreChunkQuotaExhaustionEscalates(t *testing.T) {
	client := newMockClient()
	client.failFirst["primary-model"] = 100
	client.failFirst["fallback-model"] = 100
	s := testScorer(client)
	defer func() { _ = s.Close() }()

	_, err := s.ScoreChunk(context.Background(), "system", "user")

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
	// Each model gets its own retry budget.
	assert.Equal(t, 3, client.calls["primary-model"])
	assert.Equal(t, 3, client.calls["fallback-model"])
}

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name   string
		orders []string
		size   int
		want   [][]string
	}{
		{
			name:   "empty",
			orders: nil,
			size:   3,
			want:   nil,
		},
		{
			name:   "single partial chunk",
			orders: []string{"a", "b"},
			size:   3,
			want:   [][]string{{"a", "b"}},
		},
		{
			name:   "exact multiple",
			orders: []string{"a", "b", "c", "d"},
			size:   2,
			want:   [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:   "remainder chunk",
			orders: []string{"a", "b", "c"},
			size:   2,
			want:   [][]string{{"a", "b"}, {"c"}},
		},
		{
			name:   "non-positive size uses default",
			orders: []string{"a"},
			size:   0,
			want:   [][]string{{"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitChunks(tt.orders, tt.size))
		})
	}
}
