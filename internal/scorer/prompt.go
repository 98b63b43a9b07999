package scorer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

// PromptSource supplies the system prompt for scoring calls.
type PromptSource interface {
	SystemPrompt(ctx context.Context) (string, error)
}

// StaticPrompt is a PromptSource backed by a fixed string, used in tests and
// when the prompt is inlined in config.
type StaticPrompt string

// SystemPrompt returns the fixed prompt text.
func (p StaticPrompt) SystemPrompt(_ context.Context) (string, error) {
	return string(p), nil
}

// RemotePromptSource fetches the system prompt from a URL and caches it
// in-process. Prompts are versioned markdown documents maintained outside
// the binary so scoring rules can change without a redeploy.
type RemotePromptSource struct {
	fetchedAt  time.Time
	httpClient *http.Client
	url        string
	cached     string
	ttl        time.Duration
	mu         sync.Mutex
}

// NewRemotePromptSource creates a prompt source for url with the given cache
// TTL.
func NewRemotePromptSource(url string, ttl time.Duration) *RemotePromptSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RemotePromptSource{
		url: url,
		ttl: ttl,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SystemPrompt returns the cached prompt, refetching after the TTL expires.
func (p *RemotePromptSource) SystemPrompt(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" && time.Since(p.fetchedAt) < p.ttl {
		return p.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create prompt request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch prompt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("prompt fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt body: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("prompt at %s is empty", p.url)
	}

	p.cached = string(body)
	p.fetchedAt = time.Now()
	return p.cached, nil
}

// PromptInput collects everything a single scoring call needs.
type PromptInput struct {
	Date      time.Time
	Primary   string
	Auxiliary string
	// ChunkText holds the incremental-ledger blocks for the orders being
	// rescored in this call, blank-line separated.
	ChunkText string
	// ChunkCount is the number of orders in ChunkText.
	ChunkCount int
	// Reused carries forward previously scored records that must appear in
	// the unified report but must not be rescored.
	Reused map[string]model.CaseRecord
}

// Incremental reports whether this call carries forward previous results.
func (in PromptInput) Incremental() bool {
	return len(in.Reused) > 0
}

// BuildUserMessage renders the scoring request. The ledger texts go in
// verbatim; in incremental mode the previously computed results are listed
// with an instruction to merge, not rescore, them.
func BuildUserMessage(in PromptInput) string {
	date := in.Date.Format("02.01.2006")
	auxiliary := in.Auxiliary
	if auxiliary == "" {
		auxiliary = "(brak danych pomocniczych)"
	}
	chunk := in.ChunkText
	if chunk == "" {
		chunk = "(brak nowych bloków)"
	}

	if !in.Incremental() {
		return fmt.Sprintf(`Data dzisiejsza: %s

Generuj raport priorytetów na podstawie poniższych wsadów.

=== WSAD 1: GŁÓWNY ===
%s

=== WSAD 2: ZAMÓWIENIA ===
%s

=== WSAD 3: DANE POMOCNICZE ===
%s
`, date, in.Primary, chunk, auxiliary)
	}

	ready := formatReusedLines(in.Reused)

	return fmt.Sprintf(`Data dzisiejsza: %s

TRYB INKREMENTALNY — dopełnienie puli.

=== ZADANIE ===
1. Przelicz priorytety TYLKO dla zamówień z sekcji "DO PRZELICZENIA".
2. Zamówienia z sekcji "GOTOWE WYNIKI" mają już przeliczone priorytety — NIE przeliczaj ich ponownie, weź ich score i dane jak są.
3. Połącz WSZYSTKO (przeliczone + gotowe) w jedną spójną posortowaną listę per grupa (DE/FR/UKPL).
4. Wynik: pełna lista WSZYSTKICH zamówień posortowana od najwyższego priorytetu, w standardowym formacie wyjściowym.

=== WSAD 1: GŁÓWNY ===
%s

=== WSAD 2: ZAMÓWIENIA DO PRZELICZENIA (%d szt.) ===
%s

=== WSAD 3: DANE POMOCNICZE ===
%s

=== GOTOWE WYNIKI Z POPRZEDNIEJ RUNDY (%d szt.) — NIE PRZELICZAJ, WSTAW DO LISTY ===
%s
`, date, in.Primary, in.ChunkCount, chunk, auxiliary, len(in.Reused), ready)
}

// formatReusedLines renders carried-forward records, highest score first, in
// the single-line form the scoring service expects back.
func formatReusedLines(reused map[string]model.CaseRecord) string {
	records := make([]model.CaseRecord, 0, len(reused))
	for _, c := range reused {
		records = append(records, c)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].OrderNumber < records[j].OrderNumber
	})

	lines := make([]string, 0, len(records))
	for _, c := range records {
		lines = append(lines, fmt.Sprintf("[SCORE=%d] %s | %s | NrZam: %s | Grupa: %s | Status: %s | Linia: %s",
			c.Score, c.PriorityIcon, c.PriorityLabel, c.OrderNumber, c.Group, c.Status,
			strings.ReplaceAll(c.SourceLine, "\n", " ")))
	}
	return strings.Join(lines, "\n")
}
