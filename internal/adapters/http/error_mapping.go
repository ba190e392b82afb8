package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/usecase"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidPath):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPackageNotFound), domain.IsKind(err, domain.ErrScreenNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrScreenClosed):
		return http.StatusGone
	case domain.IsKind(err, domain.ErrInvalidResponse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
