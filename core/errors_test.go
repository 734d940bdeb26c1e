package core

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_PreservesRichErrors(t *testing.T) {
	source := NewError("core: token exchange rejected", goerrors.CategoryAuth,
		http.StatusBadRequest, ProxyErrorTokenExchangeFailed,
		map[string]any{"status_code": 401})

	mapped := MapError(source)
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != ProxyErrorTokenExchangeFailed {
		t.Fatalf("expected text code to survive mapping, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", mapped.Code)
	}
	if mapped.Metadata["status_code"] != 401 {
		t.Fatalf("expected metadata to survive mapping, got %v", mapped.Metadata)
	}
}

func TestMapError_ClassifiesPlainErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		textCode string
		status   int
	}{
		{
			name:     "state failures map to oauth state invalid",
			err:      errors.New("core: invalid or expired state parameter"),
			textCode: ProxyErrorOAuthStateInvalid,
			status:   http.StatusBadRequest,
		},
		{
			name:     "missing fields map to bad input",
			err:      errors.New("core: shop domain is required"),
			textCode: ProxyErrorBadInput,
			status:   http.StatusBadRequest,
		},
		{
			name:     "unknown errors map to internal",
			err:      errors.New("boom"),
			textCode: ProxyErrorInternal,
			status:   http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
			if mapped.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, mapped.Code)
			}
		})
	}
}

func TestEnsureErrorEnvelope_FillsMissingFields(t *testing.T) {
	err := goerrors.New("upstream rejected call", goerrors.CategoryExternal)
	ensured := EnsureErrorEnvelope(err)
	if ensured.Code != http.StatusInternalServerError {
		t.Fatalf("expected external category to default to 500, got %d", ensured.Code)
	}
	if ensured.TextCode != ProxyErrorTransportFailure {
		t.Fatalf("expected %s, got %q", ProxyErrorTransportFailure, ensured.TextCode)
	}
}

func TestMapError_NilIsNil(t *testing.T) {
	if MapError(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}
