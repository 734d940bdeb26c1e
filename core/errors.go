package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ProxyErrorBadInput            = "PROXY_BAD_INPUT"
	ProxyErrorOAuthStateInvalid   = "PROXY_OAUTH_STATE_INVALID"
	ProxyErrorUpstreamAuth        = "PROXY_UPSTREAM_AUTH_ERROR"
	ProxyErrorTokenExchangeFailed = "PROXY_TOKEN_EXCHANGE_FAILED"
	ProxyErrorStagedUploadFailed  = "PROXY_STAGED_UPLOAD_FAILED"
	ProxyErrorBinaryUploadFailed  = "PROXY_BINARY_UPLOAD_FAILED"
	ProxyErrorFileFinalizeFailed  = "PROXY_FILE_FINALIZE_FAILED"
	ProxyErrorTransportFailure    = "PROXY_TRANSPORT_FAILURE"
	ProxyErrorInternal            = "PROXY_INTERNAL_ERROR"
)

// NewError builds a proxy error envelope with an explicit HTTP code and text
// code, optionally carrying upstream detail metadata.
func NewError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapError wraps a source error in a proxy envelope.
func WrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return NewError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func BadInputError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ProxyErrorBadInput, metadata)
}

func InternalError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryInternal, http.StatusInternalServerError, ProxyErrorInternal, metadata)
}

// EnsureErrorEnvelope fills in a missing HTTP code or text code from the
// error's category so transport boundaries always have both.
func EnsureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = proxyHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultProxyTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

// MapError converts any error into a proxy error envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return EnsureErrorEnvelope(richErr)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "state"):
		return EnsureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryAuth).
				WithCode(http.StatusBadRequest).
				WithTextCode(ProxyErrorOAuthStateInvalid),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return EnsureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(ProxyErrorBadInput),
		)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped != nil && !strings.HasPrefix(mapped.TextCode, "PROXY_") {
		mapped.TextCode = defaultProxyTextCode(mapped.Category)
	}
	return EnsureErrorEnvelope(mapped)
}

func defaultProxyTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ProxyErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ProxyErrorOAuthStateInvalid
	case goerrors.CategoryExternal:
		return ProxyErrorTransportFailure
	default:
		return ProxyErrorInternal
	}
}

func proxyHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return http.StatusBadRequest
	case goerrors.CategoryExternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
