package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/llm"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/internal/querynorm"
)

const maxQuestionRunes = 2000

const ragSystemPrompt = `Ты консультант каталога битумной продукции.
Отвечай только на основе фрагментов из раздела «Контекст». Если ответа в контексте нет, прямо скажи об этом и не придумывай характеристики.
Называй продукты так, как они названы в контексте. Отвечай по-русски, кратко и по делу.`

// User-facing answers for outcomes that do not come from the model.
const (
	msgNoInfo = "К сожалению, в каталоге не нашлось информации по вашему вопросу. " +
		"Попробуйте переформулировать вопрос или найти продукт по названию."
	msgRetrievalFailed = "Извините, поиск по каталогу сейчас недоступен. Попробуйте позже."
	msgLLMTimeout      = "Извините, ответ готовится слишком долго. Попробуйте задать вопрос ещё раз чуть позже."
	msgLLMRateLimited  = "Извините, сейчас слишком много запросов. Попробуйте через минуту."
	msgLLMAuth         = "Извините, сервис ответов временно недоступен."
	msgLLMMalformed    = "Извините, не удалось сформировать ответ. Попробуйте переформулировать вопрос."
	msgLLMProvider     = "Извините, при подготовке ответа произошла ошибка. Попробуйте позже."
)

// chunkRetriever returns chunks relevant to a query.
type chunkRetriever interface {
	SearchChunks(ctx context.Context, query string, topK int, threshold float64) ([]models.SearchHit, error)
}

// answerLedger records questions and answers.
type answerLedger interface {
	LogQuery(
		ctx context.Context, userID int64, username *string, text string, queryType models.QueryType,
	) (*models.UserQuery, error)
	LogResponse(ctx context.Context, resp *models.BotResponse) error
}

// AskRequest is one user question.
type AskRequest struct {
	UserID    int64   `json:"user_id"              validate:"required,gt=0"`
	Username  *string `json:"username,omitempty"   validate:"omitempty,max=255,no_null_bytes"`
	Question  string  `json:"question"             validate:"required,max=2000,no_null_bytes"`
	MessageID *string `json:"message_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
}

// Answer is what the user sees plus the ids needed to attach feedback.
type Answer struct {
	QueryID          *uuid.UUID          `json:"query_id,omitempty"`
	ResponseID       *uuid.UUID          `json:"response_id,omitempty"`
	Text             string              `json:"text"`
	ResponseType     models.ResponseType `json:"response_type"`
	Sources          []models.SearchHit  `json:"sources"`
	ExecutionTime    float64             `json:"execution_time"`
	FeedbackEligible bool                `json:"feedback_eligible"`
}

// RAGService answers catalog questions from retrieved chunks.
type RAGService struct {
	retriever       chunkRetriever
	completer       llm.Completer
	ledger          answerLedger
	topK            int
	scoreThreshold  float64
	maxContextChars int
	llmTimeout      time.Duration
	metrics         observability.RAGMetrics
	logger          *slog.Logger
}

// RAGServiceParams configures RAGService. Metrics and Logger may be nil.
type RAGServiceParams struct {
	Retriever       chunkRetriever
	Completer       llm.Completer
	Ledger          answerLedger
	TopK            int
	ScoreThreshold  float64
	MaxContextChars int
	LLMTimeout      time.Duration
	Metrics         observability.RAGMetrics
	Logger          *slog.Logger
}

// NewRAGService creates a RAGService.
func NewRAGService(p RAGServiceParams) *RAGService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RAGService{
		retriever:       p.Retriever,
		completer:       p.Completer,
		ledger:          p.Ledger,
		topK:            p.TopK,
		scoreThreshold:  p.ScoreThreshold,
		maxContextChars: p.MaxContextChars,
		llmTimeout:      p.LLMTimeout,
		metrics:         p.Metrics,
		logger:          logger,
	}
}

// Answer runs retrieve, generate, and log for one question. Retrieval and model failures
// become an apologetic answer with response type error; the returned error is reserved for
// invalid input.
func (s *RAGService) Answer(ctx context.Context, req AskRequest) (Answer, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Answer{}, huberrors.NewValidationError("question", "question is required")
	}

	if len([]rune(question)) > maxQuestionRunes {
		return Answer{}, huberrors.NewValidationError("question", "question is too long")
	}

	out := Answer{Sources: []models.SearchHit{}}

	query, err := s.ledger.LogQuery(ctx, req.UserID, req.Username, question, models.QueryTypeAIQuestion)
	if err == nil {
		out.QueryID = &query.ID
	}

	outcome := s.generate(ctx, question, &out)
	out.ExecutionTime = time.Since(start).Seconds()

	if out.QueryID != nil {
		resp := &models.BotResponse{
			QueryID:       *out.QueryID,
			ResponseText:  out.Text,
			ResponseType:  out.ResponseType,
			ExecutionTime: out.ExecutionTime,
			SourcesCount:  len(out.Sources),
			MessageID:     req.MessageID,
		}

		if err := s.ledger.LogResponse(ctx, resp); err == nil {
			out.ResponseID = &resp.ID
			out.FeedbackEligible = true
		}
	}

	if s.metrics != nil {
		s.metrics.RecordAnswer(ctx, outcome, time.Since(start))
	}

	s.logger.InfoContext(ctx, "rag: answered",
		"user_id", req.UserID,
		"outcome", outcome,
		"sources", len(out.Sources),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return out, nil
}

// generate fills text, response type, and sources, and returns the outcome label.
func (s *RAGService) generate(ctx context.Context, question string, out *Answer) string {
	hits, err := s.retriever.SearchChunks(ctx, querynorm.Expand(question), s.topK, s.scoreThreshold)
	if err != nil {
		s.logger.ErrorContext(ctx, "rag: retrieval failed", "error", err)

		out.Text = msgRetrievalFailed
		out.ResponseType = models.ResponseTypeError

		return "retrieval_error"
	}

	if len(hits) == 0 {
		out.Text = msgNoInfo
		out.ResponseType = models.ResponseTypeSearchResults

		return "no_info"
	}

	contextText, used := buildContext(hits, s.maxContextChars)
	out.Sources = hits[:used]

	text, err := s.complete(ctx, ragUserPrompt(contextText, question))
	if err != nil {
		kind := llm.Kind(err)
		if s.metrics != nil {
			s.metrics.RecordLLMError(ctx, kind)
		}

		s.logger.ErrorContext(ctx, "rag: generation failed", "kind", kind, "error", err)

		out.Text = llmFailureMessage(kind)
		out.ResponseType = models.ResponseTypeError

		return "llm_failed"
	}

	out.Text = text
	out.ResponseType = models.ResponseTypeAIGenerated

	return "generated"
}

func (s *RAGService) complete(ctx context.Context, userPrompt string) (string, error) {
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}

	text, err := s.completer.Complete(ctx, ragSystemPrompt, userPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, llm.ErrTimeout) {
			return "", fmt.Errorf("%w: %w", llm.ErrTimeout, err)
		}

		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", llm.ErrMalformedResponse
	}

	return text, nil
}

// buildContext renders labeled blocks in retrieval order until maxChars runes would be exceeded.
// The first block is always included, truncated if needed. It returns the text and how many
// hits it used.
func buildContext(hits []models.SearchHit, maxChars int) (string, int) {
	var b strings.Builder

	used, size := 0, 0

	for i, h := range hits {
		block := fmt.Sprintf("%s\n%s\n\n", sourceLabel(i+1, h), strings.TrimSpace(h.Text))
		blockSize := utf8.RuneCountInString(block)

		if maxChars > 0 && size+blockSize > maxChars {
			if i == 0 {
				b.WriteString(truncateRunes(block, maxChars))

				used = 1
			}

			break
		}

		b.WriteString(block)

		size += blockSize
		used++
	}

	return strings.TrimSpace(b.String()), used
}

func sourceLabel(n int, h models.SearchHit) string {
	if h.FilePath == "" {
		return fmt.Sprintf("[Источник %d: %s]", n, h.ProductName)
	}

	return fmt.Sprintf("[Источник %d: %s, файл %s]", n, h.ProductName, filepath.Base(h.FilePath))
}

func ragUserPrompt(contextText, question string) string {
	return "Контекст:\n" + contextText + "\n\nВопрос: " + question
}

func llmFailureMessage(kind string) string {
	switch kind {
	case "timeout":
		return msgLLMTimeout
	case "rate_limited":
		return msgLLMRateLimited
	case "auth":
		return msgLLMAuth
	case "malformed":
		return msgLLMMalformed
	default:
		return msgLLMProvider
	}
}
