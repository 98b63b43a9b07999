package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

// Firestore collection names, shared with the operator UI. Do not rename:
// the UI reads and writes these collections directly.
const (
	colLedgers   = "ew_wsady"
	colCases     = "ew_cases"
	colBatches   = "ew_batches"
	colAutopilot = "ew_autopilot"

	autopilotDocID = "job"
)

// Legacy status values the operator UI writes. Translated at the boundary
// so the rest of the code only ever sees canonical statuses.
var legacyStatus = map[string]model.CaseStatus{
	"wolny":        model.StatusFree,
	"przydzielony": model.StatusAssigned,
	"w_toku":       model.StatusInProgress,
	"zakonczony":   model.StatusCompleted,
}

var legacyStatusOut = map[model.CaseStatus]string{
	model.StatusFree:       "wolny",
	model.StatusAssigned:   "przydzielony",
	model.StatusInProgress: "w_toku",
	model.StatusCompleted:  "zakonczony",
}

// firestoreCase is the wire shape of a case document. Field names match
// the documents the operator UI already stores.
type firestoreCase struct {
	OrderNumber     string     `firestore:"numer_zamowienia"`
	Score           int        `firestore:"score"`
	PriorityIcon    string     `firestore:"ikona"`
	PriorityLabel   string     `firestore:"etykieta"`
	Group           string     `firestore:"grupa"`
	CommercialIndex string     `firestore:"index_handlowy"`
	SourceLine      string     `firestore:"pelna_linia_szturchacza"`
	HeaderLine      string     `firestore:"naglowek_priorytetowy"`
	Status          string     `firestore:"status"`
	AssignedTo      string     `firestore:"assigned_to"`
	AssignedAt      *time.Time `firestore:"assigned_at"`
	CompletedAt     *time.Time `firestore:"completed_at"`
	BatchID         string     `firestore:"batch_id"`
	SortOrder       int        `firestore:"sort_order"`
	CreatedAt       time.Time  `firestore:"created_at"`
}

type firestoreBatch struct {
	CreatedAt  time.Time `firestore:"created_at"`
	DateLabel  string    `firestore:"date_label"`
	TotalCases int       `firestore:"total_cases"`
	Status     string    `firestore:"status"`
	Summary    string    `firestore:"summary"`
	PromptUsed string    `firestore:"prompt_used"`
	ModelUsed  string    `firestore:"model_used"`
}

type firestoreJob struct {
	State        string     `firestore:"state"`
	BatchID      string     `firestore:"batch_id"`
	Queue        [][]string `firestore:"queue"`
	FailedOrders []string   `firestore:"failed_orders"`
	Processed    int        `firestore:"processed"`
	Total        int        `firestore:"total"`
	StartedAt    time.Time  `firestore:"started_at"`
	UpdatedAt    time.Time  `firestore:"updated_at"`
}

// FirestoreStorage implements the Storage interface on Cloud Firestore.
// Use it when the scoring engine shares state with the operator UI.
type FirestoreStorage struct {
	client *firestore.Client
}

var _ service.Storage = (*FirestoreStorage)(nil)

// NewFirestoreStorage connects to Firestore for the given project.
func NewFirestoreStorage(ctx context.Context, projectID string) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID cannot be empty: %w", common.ErrMissingConfig)
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStorage{client: client}, nil
}

// LoadLedger returns a ledger pool's text, or "" when absent.
func (f *FirestoreStorage) LoadLedger(ctx context.Context, kind model.LedgerKind) (string, error) {
	snap, err := f.client.Collection(colLedgers).Doc(string(kind)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load ledger %s: %w", kind, err)
	}

	data, err := snap.DataAt("tekst")
	if err != nil {
		return "", fmt.Errorf("ledger %s has no text field: %w", kind, err)
	}
	text, ok := data.(string)
	if !ok {
		return "", fmt.Errorf("ledger %s text field is not a string", kind)
	}
	return text, nil
}

// SaveLedger overwrites a ledger pool's text.
func (f *FirestoreStorage) SaveLedger(ctx context.Context, kind model.LedgerKind, data string) error {
	_, err := f.client.Collection(colLedgers).Doc(string(kind)).Set(ctx, map[string]any{
		"tekst":      data,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save ledger %s: %w", kind, err)
	}
	return nil
}

// ClearLedgers deletes every ledger pool document.
func (f *FirestoreStorage) ClearLedgers(ctx context.Context) error {
	for _, kind := range model.LedgerKinds() {
		_, err := f.client.Collection(colLedgers).Doc(string(kind)).Delete(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear ledger %s: %w", kind, err)
		}
	}
	return nil
}

// SaveCase writes a case document.
func (f *FirestoreStorage) SaveCase(ctx context.Context, c *model.CaseRecord) error {
	if c.ID == "" {
		return fmt.Errorf("case ID cannot be empty")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("invalid case status: %s", c.Status)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := f.client.Collection(colCases).Doc(c.ID).Set(ctx, firestoreCase{
		OrderNumber:     c.OrderNumber,
		Score:           c.Score,
		PriorityIcon:    c.PriorityIcon,
		PriorityLabel:   c.PriorityLabel,
		Group:           string(c.Group),
		CommercialIndex: c.CommercialIndex,
		SourceLine:      c.SourceLine,
		HeaderLine:      c.HeaderLine,
		Status:          statusToWire(c.Status),
		AssignedTo:      c.AssignedTo,
		AssignedAt:      c.AssignedAt,
		CompletedAt:     c.CompletedAt,
		BatchID:         c.BatchID,
		SortOrder:       c.SortOrder,
		CreatedAt:       createdAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", c.ID, err)
	}
	return nil
}

// GetCase fetches a case by document key.
func (f *FirestoreStorage) GetCase(ctx context.Context, id string) (*model.CaseRecord, error) {
	snap, err := f.client.Collection(colCases).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("case %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	return decodeCase(snap)
}

// GetCases returns cases matching the filter, highest score first.
func (f *FirestoreStorage) GetCases(ctx context.Context, filter service.CaseFilter) ([]model.CaseRecord, error) {
	q := f.client.Collection(colCases).Query
	if filter.Group != "" {
		q = q.Where("grupa", "==", string(filter.Group))
	}
	if filter.Status != "" {
		q = q.Where("status", "==", statusToWire(filter.Status))
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to", "==", filter.AssignedTo)
	}
	if filter.BatchID != "" {
		q = q.Where("batch_id", "==", filter.BatchID)
	}
	q = q.OrderBy("score", firestore.Desc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var cases []model.CaseRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate cases: %w", err)
		}
		c, err := decodeCase(snap)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	return cases, nil
}

// GetAllCases returns every persisted case.
func (f *FirestoreStorage) GetAllCases(ctx context.Context) ([]model.CaseRecord, error) {
	return f.GetCases(ctx, service.CaseFilter{})
}

// DeleteCase removes a case document.
func (f *FirestoreStorage) DeleteCase(ctx context.Context, id string) error {
	if _, err := f.client.Collection(colCases).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete case %s: %w", id, err)
	}
	return nil
}

// UpdateCaseStatus updates status, assignee and the matching timestamp.
func (f *FirestoreStorage) UpdateCaseStatus(ctx context.Context, id string, st model.CaseStatus, assignee string) error {
	if !st.Valid() {
		return fmt.Errorf("invalid case status: %s", st)
	}

	updates := []firestore.Update{
		{Path: "status", Value: statusToWire(st)},
		{Path: "assigned_to", Value: assignee},
	}
	now := time.Now().UTC()
	switch st {
	case model.StatusAssigned:
		updates = append(updates, firestore.Update{Path: "assigned_at", Value: now})
	case model.StatusCompleted:
		updates = append(updates, firestore.Update{Path: "completed_at", Value: now})
	}

	_, err := f.client.Collection(colCases).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("case %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update case %s: %w", id, err)
	}
	return nil
}

// PurgeCases deletes every case document.
func (f *FirestoreStorage) PurgeCases(ctx context.Context) (int, error) {
	return f.purgeCollection(ctx, colCases)
}

// CreateBatch writes a batch document.
func (f *FirestoreStorage) CreateBatch(ctx context.Context, b *model.Batch) error {
	if b.ID == "" {
		return fmt.Errorf("batch ID cannot be empty")
	}
	if b.Status == "" {
		b.Status = model.BatchActive
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	_, err := f.client.Collection(colBatches).Doc(b.ID).Create(ctx, encodeBatch(b))
	if err != nil {
		return fmt.Errorf("failed to create batch %s: %w", b.ID, err)
	}
	return nil
}

// UpdateBatch rewrites a batch document.
func (f *FirestoreStorage) UpdateBatch(ctx context.Context, b *model.Batch) error {
	_, err := f.client.Collection(colBatches).Doc(b.ID).Set(ctx, encodeBatch(b))
	if err != nil {
		return fmt.Errorf("failed to update batch %s: %w", b.ID, err)
	}
	return nil
}

// GetBatch fetches a batch by ID.
func (f *FirestoreStorage) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	snap, err := f.client.Collection(colBatches).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %s: %w", id, err)
	}
	return decodeBatch(snap)
}

// GetBatches returns batches newest first.
func (f *FirestoreStorage) GetBatches(ctx context.Context, limit int) ([]model.Batch, error) {
	q := f.client.Collection(colBatches).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var batches []model.Batch
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate batches: %w", err)
		}
		b, err := decodeBatch(snap)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, nil
}

// ArchiveBatch marks one batch as archived.
func (f *FirestoreStorage) ArchiveBatch(ctx context.Context, id string) error {
	_, err := f.client.Collection(colBatches).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(model.BatchArchived)},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to archive batch %s: %w", id, err)
	}
	return nil
}

// ArchiveActiveBatches archives every active batch except the given one.
func (f *FirestoreStorage) ArchiveActiveBatches(ctx context.Context, exceptID string) error {
	iter := f.client.Collection(colBatches).
		Where("status", "==", string(model.BatchActive)).
		Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate active batches: %w", err)
		}
		if snap.Ref.ID == exceptID {
			continue
		}
		if _, err := snap.Ref.Update(ctx, []firestore.Update{
			{Path: "status", Value: string(model.BatchArchived)},
		}); err != nil {
			return fmt.Errorf("failed to archive batch %s: %w", snap.Ref.ID, err)
		}
	}
	return nil
}

// PurgeBatches deletes every batch document.
func (f *FirestoreStorage) PurgeBatches(ctx context.Context) (int, error) {
	return f.purgeCollection(ctx, colBatches)
}

// SaveAutopilotJob writes the singleton job document.
func (f *FirestoreStorage) SaveAutopilotJob(ctx context.Context, job *model.AutopilotJob) error {
	job.UpdatedAt = time.Now().UTC()
	_, err := f.client.Collection(colAutopilot).Doc(autopilotDocID).Set(ctx, firestoreJob{
		State:        string(job.State),
		BatchID:      job.BatchID,
		Queue:        job.Queue,
		FailedOrders: job.FailedOrders,
		Processed:    job.Processed,
		Total:        job.Total,
		StartedAt:    job.StartedAt,
		UpdatedAt:    job.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save autopilot job: %w", err)
	}
	return nil
}

// GetAutopilotJob returns the persisted job, or an idle one when absent.
func (f *FirestoreStorage) GetAutopilotJob(ctx context.Context) (*model.AutopilotJob, error) {
	snap, err := f.client.Collection(colAutopilot).Doc(autopilotDocID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return &model.AutopilotJob{State: model.JobIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load autopilot job: %w", err)
	}

	var fj firestoreJob
	if err := snap.DataTo(&fj); err != nil {
		return nil, fmt.Errorf("failed to decode autopilot job: %w", err)
	}
	return &model.AutopilotJob{
		State:        model.JobState(fj.State),
		BatchID:      fj.BatchID,
		Queue:        fj.Queue,
		FailedOrders: fj.FailedOrders,
		Processed:    fj.Processed,
		Total:        fj.Total,
		StartedAt:    fj.StartedAt,
		UpdatedAt:    fj.UpdatedAt,
	}, nil
}

// ClearAutopilotJob deletes the job document.
func (f *FirestoreStorage) ClearAutopilotJob(ctx context.Context) error {
	_, err := f.client.Collection(colAutopilot).Doc(autopilotDocID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear autopilot job: %w", err)
	}
	return nil
}

// Migrate is a no-op for Firestore; collections are created on first write.
func (f *FirestoreStorage) Migrate(_ context.Context) error {
	return nil
}

// Close closes the Firestore client.
func (f *FirestoreStorage) Close() error {
	return f.client.Close()
}

func (f *FirestoreStorage) purgeCollection(ctx context.Context, name string) (int, error) {
	iter := f.client.Collection(name).Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to iterate %s: %w", name, err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return count, fmt.Errorf("failed to delete %s/%s: %w", name, snap.Ref.ID, err)
		}
		count++
	}
	return count, nil
}

func statusToWire(st model.CaseStatus) string {
	if legacy, ok := legacyStatusOut[st]; ok {
		return legacy
	}
	return string(st)
}

func statusFromWire(s string) model.CaseStatus {
	if st, ok := legacyStatus[s]; ok {
		return st
	}
	return model.CaseStatus(s)
}

func decodeCase(snap *firestore.DocumentSnapshot) (*model.CaseRecord, error) {
	var fc firestoreCase
	if err := snap.DataTo(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode case %s: %w", snap.Ref.ID, err)
	}
	return &model.CaseRecord{
		ID:              snap.Ref.ID,
		OrderNumber:     fc.OrderNumber,
		Score:           fc.Score,
		PriorityIcon:    fc.PriorityIcon,
		PriorityLabel:   fc.PriorityLabel,
		Group:           model.Group(fc.Group),
		CommercialIndex: fc.CommercialIndex,
		SourceLine:      fc.SourceLine,
		HeaderLine:      fc.HeaderLine,
		Status:          statusFromWire(fc.Status),
		AssignedTo:      fc.AssignedTo,
		AssignedAt:      fc.AssignedAt,
		CompletedAt:     fc.CompletedAt,
		BatchID:         fc.BatchID,
		SortOrder:       fc.SortOrder,
		CreatedAt:       fc.CreatedAt,
	}, nil
}

func encodeBatch(b *model.Batch) firestoreBatch {
	return firestoreBatch{
		CreatedAt:  b.CreatedAt,
		DateLabel:  b.DateLabel,
		TotalCases: b.TotalCases,
		Status:     string(b.Status),
		Summary:    b.Summary,
		PromptUsed: b.PromptUsed,
		ModelUsed:  b.ModelUsed,
	}
}

func decodeBatch(snap *firestore.DocumentSnapshot) (*model.Batch, error) {
	var fb firestoreBatch
	if err := snap.DataTo(&fb); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", snap.Ref.ID, err)
	}
	return &model.Batch{
		ID:         snap.Ref.ID,
		CreatedAt:  fb.CreatedAt,
		DateLabel:  fb.DateLabel,
		TotalCases: fb.TotalCases,
		Status:     model.BatchStatus(fb.Status),
		Summary:    fb.Summary,
		PromptUsed: fb.PromptUsed,
		ModelUsed:  fb.ModelUsed,
	}, nil
}
