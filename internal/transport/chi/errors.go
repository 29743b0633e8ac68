package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrRateLimited, http.StatusBadGateway, CodeRateLimited),
		providerHandler,
		sentinelHandler(domain.ErrIndexCorruption, http.StatusInternalServerError, CodeIndexCorrupt),
	}
}

// validationHandler reports the offending field; the message carries no internals.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	code := CodeValidationFailed
	if errors.Is(err, domain.ErrUnknownStrategy) {
		code = CodeUnknownStrategy
	}
	writeError(w, http.StatusBadRequest, code, ve.Error())
	return true
}

func providerHandler(w http.ResponseWriter, err error) bool {
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	writeError(w, http.StatusBadGateway, CodeProviderError, pe.Op+" provider failed")
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	if errors.Is(err, context.Canceled) {
		log.Debug("request canceled", zap.Error(err))
		return
	}
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
