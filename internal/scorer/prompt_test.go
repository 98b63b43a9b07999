package scorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

func TestBuildUserMessageFirstRun(t *testing.T) {
	msg := BuildUserMessage(PromptInput{
		Date:       time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
		Primary:    "primary ledger",
		Auxiliary:  "aux data",
		ChunkText:  "NrZam: 100\nfoo",
		ChunkCount: 1,
	})

	assert.Contains(t, msg, "12.03.2026")
	assert.Contains(t, msg, "primary ledger")
	assert.Contains(t, msg, "NrZam: 100")
	assert.Contains(t, msg, "aux data")
	assert.NotContains(t, msg, "TRYB INKREMENTALNY")
}

func TestBuildUserMessageIncremental(t *testing.T) {
	msg := BuildUserMessage(PromptInput{
		Date:       time.Now(),
		Primary:    "primary ledger",
		ChunkText:  "NrZam: 200\nbar",
		ChunkCount: 1,
		Reused: map[string]model.CaseRecord{
			"100": {
				OrderNumber:   "100",
				Score:         80,
				PriorityIcon:  "🔴",
				PriorityLabel: "pilne",
				Group:         model.GroupDE,
				Status:        model.StatusAssigned,
				SourceLine:    "NrZam: 100\nfoo",
			},
		},
	})

	assert.Contains(t, msg, "TRYB INKREMENTALNY")
	assert.Contains(t, msg, "[SCORE=80] 🔴 | pilne | NrZam: 100")
	// Multi-line source text must collapse to one line in the ready section.
	assert.NotContains(t, msg, "Linia: NrZam: 100\nfoo")
	assert.Contains(t, msg, "(brak danych pomocniczych)")
}

func TestFormatReusedLinesOrdering(t *testing.T) {
	reused := map[string]model.CaseRecord{
		"1": {OrderNumber: "1", Score: 10},
		"2": {OrderNumber: "2", Score: 90},
		"3": {OrderNumber: "3", Score: 50},
	}

	out := formatReusedLines(reused)

	require.Contains(t, out, "[SCORE=90]")
	assert.Less(t, strings.Index(out, "[SCORE=90]"), strings.Index(out, "[SCORE=50]"))
	assert.Less(t, strings.Index(out, "[SCORE=50]"), strings.Index(out, "[SCORE=10]"))
}

func TestRemotePromptSourceCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("prompt body"))
	}))
	defer srv.Close()

	src := NewRemotePromptSource(srv.URL, time.Hour)

	for range 3 {
		got, err := src.SystemPrompt(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "prompt body", got)
	}

	assert.Equal(t, int32(1), hits.Load())
}

func TestRemotePromptSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewRemotePromptSource(srv.URL, time.Hour)
	_, err := src.SystemPrompt(context.Background())
	assert.Error(t, err)
}
