package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	e := NotFound("product", "12345")
	assert.Contains(t, e.Error(), "NOT_FOUND")
	assert.Contains(t, e.Error(), "12345")
}

func TestAppError_Unwrap(t *testing.T) {
	e := InvalidInput("page must be positive")
	assert.True(t, errors.Is(e, ErrInvalidInput))
}

func TestUnavailable_WrapsBoth(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	e := Unavailable("search engine", cause)

	assert.True(t, errors.Is(e, ErrServiceUnavail))
	assert.True(t, errors.Is(e, cause))
	assert.Equal(t, http.StatusServiceUnavailable, e.Status)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", NotFound("product", "1"), http.StatusNotFound},
		{"wrapped app error", fmt.Errorf("handler: %w", InvalidInput("bad page")), http.StatusBadRequest},
		{"sentinel not found", fmt.Errorf("repo: %w", ErrNotFound), http.StatusNotFound},
		{"sentinel unavailable", fmt.Errorf("engine: %w", ErrServiceUnavail), http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
