package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bitumen-hub/catalog-assistant/internal/api/response"
	"github.com/bitumen-hub/catalog-assistant/internal/api/validation"
	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
)

// decodeAndValidate decodes a JSON body into dst, rejecting unknown fields, then runs
// struct validation. It writes the 400 response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			response.RespondBadRequest(w, "Request body is required")
		} else {
			response.RespondBadRequest(w, "Invalid request body")
		}

		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		validation.RespondValidationError(w, err)

		return false
	}

	return true
}

// respondServiceError maps service errors onto problem responses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, huberrors.ErrValidation):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, huberrors.ErrNotFound):
		response.RespondNotFound(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), action+" failed", "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	return id, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}

	return id, nil
}
