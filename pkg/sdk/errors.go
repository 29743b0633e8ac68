package legalrag

import "github.com/kailas-cloud/legalrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation        = domain.ErrValidation
	ErrUnknownStrategy   = domain.ErrUnknownStrategy
	ErrVectorDimMismatch = domain.ErrVectorDimMismatch
	ErrProvider          = domain.ErrProvider
	ErrRetryExhausted    = domain.ErrRetryExhausted
	ErrRateLimited       = domain.ErrRateLimited
	ErrIndexCorruption   = domain.ErrIndexCorruption
)
