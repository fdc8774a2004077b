package handlers

import (
	"context"
	"net/http"

	"github.com/bitumen-hub/catalog-assistant/internal/api/response"
	"github.com/bitumen-hub/catalog-assistant/internal/service"
)

// QuestionAnswerer answers a catalog question.
type QuestionAnswerer interface {
	Answer(ctx context.Context, req service.AskRequest) (service.Answer, error)
}

// QuestionHandler handles RAG questions.
type QuestionHandler struct {
	rag QuestionAnswerer
}

// NewQuestionHandler creates a new question handler.
func NewQuestionHandler(rag QuestionAnswerer) *QuestionHandler {
	return &QuestionHandler{rag: rag}
}

// Ask handles POST /v1/questions. Model and retrieval failures still answer 200 with
// response_type "error"; only invalid input is rejected.
func (h *QuestionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req service.AskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	answer, err := h.rag.Answer(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "answer question")

		return
	}

	response.RespondJSON(w, http.StatusOK, answer)
}
