package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"patrimonio-api/internal/label"
	"patrimonio-api/internal/lock"
	"patrimonio-api/internal/media"
	"patrimonio-api/internal/rowproxy"
	"patrimonio-api/internal/service"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", fmt.Errorf("create: %w", rowproxy.ErrDuplicateKey), http.StatusConflict, "DUPLICATE_KEY"},
		{"not found", rowproxy.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"stale handle", fmt.Errorf("%w: row 4", rowproxy.ErrStaleHandle), http.StatusConflict, "STALE_HANDLE"},
		{"store down", fmt.Errorf("%w: open items: refused", rowproxy.ErrUnavailable), http.StatusInternalServerError, "STORE_UNAVAILABLE"},
		{"partial update", &rowproxy.PartialUpdateError{Sheet: "items", Row: 2, Written: []int{2}, Failed: 3, Err: errors.New("quota")}, http.StatusInternalServerError, "UPSTREAM_FAILURE"},
		{"upstream", &rowproxy.UpstreamError{Sheet: "items", Op: "append", Err: errors.New("500")}, http.StatusInternalServerError, "UPSTREAM_FAILURE"},
		{"bad photo", fmt.Errorf("%w: x.gif", media.ErrUnsupportedType), http.StatusBadRequest, "BAD_REQUEST"},
		{"photo too large", media.ErrTooLarge, http.StatusBadRequest, "BAD_REQUEST"},
		{"bucket down", fmt.Errorf("%w: denied", media.ErrUploadFailed), http.StatusInternalServerError, "UPSTREAM_FAILURE"},
		{"qr too long", fmt.Errorf("%w: 4000 bytes", label.ErrContentTooLong), http.StatusBadRequest, "BAD_REQUEST"},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"in flight", service.ErrRequestInFlight, http.StatusConflict, "CONFLICT"},
		{"lock busy", fmt.Errorf("rowproxy: lock items: %w", lock.ErrNotObtained), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := toAPIError(tt.err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestToAPIError_ValidationDetailsSorted(t *testing.T) {
	apiErr := toAPIError(&service.ValidationError{Fields: map[string]string{
		"name":     "is required",
		"category": "is required",
	}})

	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	if assert.Len(t, apiErr.Details, 2) {
		assert.Equal(t, "category", apiErr.Details[0].Field)
		assert.Equal(t, "name", apiErr.Details[1].Field)
	}
}
