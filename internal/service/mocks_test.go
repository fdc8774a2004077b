package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

type mockEmbeddingClient struct {
	createFunc func(ctx context.Context, input string) ([]float32, error)
}

func (m *mockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}

	return []float32{1, 0, 0, 0}, nil
}

type mockProductReader struct {
	products map[int64]*models.Product
}

func (m *mockProductReader) GetByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("product", "product not found")
	}

	cp := *p

	return &cp, nil
}

type mockNameFinder struct {
	findFunc func(ctx context.Context, terms []string, limit int) ([]models.Product, error)
	calls    int
}

func (m *mockNameFinder) FindByNameTerms(ctx context.Context, terms []string, limit int) ([]models.Product, error) {
	m.calls++

	if m.findFunc != nil {
		return m.findFunc(ctx, terms, limit)
	}

	return nil, nil
}

type insertCall struct {
	args ProductReindexArgs
	opts *river.InsertOpts
}

type mockReindexInserter struct {
	mu        sync.Mutex
	calls     []insertCall
	insertErr error
}

func (m *mockReindexInserter) Insert(
	_ context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reindexArgs, _ := args.(ProductReindexArgs)
	m.calls = append(m.calls, insertCall{args: reindexArgs, opts: opts})

	if m.insertErr != nil {
		return nil, m.insertErr
	}

	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(m.calls))}}, nil
}

type mockActiveLister struct {
	ids []int64
	err error
}

func (m *mockActiveLister) ListActiveIDs(context.Context) ([]int64, error) {
	return m.ids, m.err
}

type mockLexical struct {
	searchFunc func(ctx context.Context, query string) ([]models.ProductHit, error)
	calls      int
}

func (m *mockLexical) Search(ctx context.Context, query string) ([]models.ProductHit, error) {
	m.calls++

	if m.searchFunc != nil {
		return m.searchFunc(ctx, query)
	}

	return nil, nil
}

type mockSemanticProducts struct {
	searchFunc func(ctx context.Context, query string, limit int, threshold float64) ([]models.ProductHit, error)
	calls      int
}

func (m *mockSemanticProducts) SearchProducts(
	ctx context.Context, query string, limit int, threshold float64,
) ([]models.ProductHit, error) {
	m.calls++

	if m.searchFunc != nil {
		return m.searchFunc(ctx, query, limit, threshold)
	}

	return nil, nil
}

type mockRetriever struct {
	searchFunc func(ctx context.Context, query string, topK int, threshold float64) ([]models.SearchHit, error)
	lastQuery  string
}

func (m *mockRetriever) SearchChunks(
	ctx context.Context, query string, topK int, threshold float64,
) ([]models.SearchHit, error) {
	m.lastQuery = query

	if m.searchFunc != nil {
		return m.searchFunc(ctx, query, topK, threshold)
	}

	return nil, nil
}

type mockCompleter struct {
	completeFunc func(ctx context.Context, system, user string) (string, error)
	calls        int
	lastUser     string
}

func (m *mockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	m.calls++
	m.lastUser = user

	if m.completeFunc != nil {
		return m.completeFunc(ctx, system, user)
	}

	return "ответ", nil
}

// mockLedgerRepo keeps rows in memory and lets tests inject failures.
type mockLedgerRepo struct {
	mu           sync.Mutex
	queries      []*models.UserQuery
	responses    []*models.BotResponse
	feedback     map[string]*models.UserFeedback
	createQErr   error
	createRErr   error
	statsSince   time.Time
	dislikeLimit int
}

func newMockLedgerRepo() *mockLedgerRepo {
	return &mockLedgerRepo{feedback: map[string]*models.UserFeedback{}}
}

func (m *mockLedgerRepo) CreateQuery(_ context.Context, q *models.UserQuery) error {
	if m.createQErr != nil {
		return m.createQErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q.ID = uuid.Must(uuid.NewV7())
	q.CreatedAt = time.Now()
	m.queries = append(m.queries, q)

	return nil
}

func (m *mockLedgerRepo) CreateResponse(_ context.Context, resp *models.BotResponse) error {
	if m.createRErr != nil {
		return m.createRErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp.ID = uuid.Must(uuid.NewV7())
	resp.CreatedAt = time.Now()
	m.responses = append(m.responses, resp)

	return nil
}

func (m *mockLedgerRepo) SetMessageID(_ context.Context, responseID uuid.UUID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.responses {
		if r.ID == responseID {
			r.MessageID = &messageID

			return nil
		}
	}

	return huberrors.NewNotFoundError("response", "bot response not found")
}

func (m *mockLedgerRepo) FindResponseIDByMessageID(_ context.Context, messageID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.responses) - 1; i >= 0; i-- {
		if r := m.responses[i]; r.MessageID != nil && *r.MessageID == messageID {
			return r.ID, nil
		}
	}

	return uuid.Nil, huberrors.NewNotFoundError("response", "no response for message")
}

func (m *mockLedgerRepo) UpsertFeedback(
	_ context.Context, responseID uuid.UUID, userID int64, kind models.FeedbackType, comment *string,
) (*models.UserFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s/%d", responseID, userID)
	if fb, ok := m.feedback[key]; ok {
		fb.FeedbackType = kind
		fb.Comment = comment
		fb.UpdatedAt = time.Now()

		return fb, nil
	}

	fb := &models.UserFeedback{
		ID: uuid.Must(uuid.NewV7()), ResponseID: responseID, UserID: userID,
		FeedbackType: kind, Comment: comment, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	m.feedback[key] = fb

	return fb, nil
}

func (m *mockLedgerRepo) Stats(_ context.Context, since time.Time) (*models.FeedbackStats, error) {
	m.statsSince = since

	return &models.FeedbackStats{Since: since, ResponsesByType: map[models.ResponseType]int64{}}, nil
}

func (m *mockLedgerRepo) RecentDislikes(_ context.Context, limit int) ([]models.DislikedResponse, error) {
	m.dislikeLimit = limit

	return []models.DislikedResponse{}, nil
}
