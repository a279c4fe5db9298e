package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndHTTPStatus(t *testing.T) {
	t.Parallel()

	_, transitionErr := Advance(StatusCompleted, ActionBump)

	tests := []struct {
		name   string
		err    error
		kind   string
		status int
	}{
		{name: "nil", err: nil, kind: "", status: http.StatusOK},
		{name: "transition", err: transitionErr, kind: "invalid_transition", status: http.StatusUnprocessableEntity},
		{name: "validation", err: fmt.Errorf("%w: no items", ErrValidation), kind: "validation", status: http.StatusUnprocessableEntity},
		{name: "conflict_wrapped", err: fmt.Errorf("update: %w", ErrConflict), kind: "conflict", status: http.StatusConflict},
		{name: "not_found", err: ErrNotFound, kind: "not_found", status: http.StatusNotFound},
		{name: "deadline", err: context.DeadlineExceeded, kind: "timeout", status: http.StatusGatewayTimeout},
		{name: "canceled", err: context.Canceled, kind: "canceled", status: http.StatusRequestTimeout},
		{name: "unknown", err: errors.New("boom"), kind: "internal", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.kind, Kind(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, Transient(nil))
	assert.False(t, Transient(ErrNotFound))
	assert.False(t, Transient(ErrConflict))
	assert.True(t, Transient(context.DeadlineExceeded))
	assert.True(t, Transient(errors.New("connection reset")))
}
