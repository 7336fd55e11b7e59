package model

import "errors"

var (
	// ErrMissingCredentials means a required service credential is not configured
	ErrMissingCredentials = errors.New("missing service credentials")

	// ErrContractViolation means the language model returned output outside its JSON contract
	ErrContractViolation = errors.New("model output violates response contract")

	// ErrInvalidInput means the request was rejected before any external call
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedMedia means an uploaded image has a MIME type we do not accept
	ErrUnsupportedMedia = errors.New("unsupported image type")

	// ErrPayloadTooLarge means an uploaded image exceeds the size limit
	ErrPayloadTooLarge = errors.New("image too large")

	// ErrQuotaExhausted means today's external API budget is spent
	ErrQuotaExhausted = errors.New("daily quota exhausted")
)
