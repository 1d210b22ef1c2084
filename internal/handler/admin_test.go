package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio-api/internal/logging"
	"patrimonio-api/internal/repository"
	"patrimonio-api/internal/rowproxy"
)

type failingItems struct {
	repository.ItemRepository
	err error
}

func (f failingItems) Count(context.Context) (int, error) { return 0, f.err }

type failingUsers struct {
	repository.UserRepository
	err error
}

func (f failingUsers) Count(context.Context) (int, error) { return 0, f.err }

type staticMonitor struct{}

func (staticMonitor) Check(context.Context) error { return nil }
func (staticMonitor) Status() rowproxy.Status     { return rowproxy.Status{Healthy: true} }

func TestAdminStatsReportsErrorCodes(t *testing.T) {
	items := failingItems{err: &rowproxy.UpstreamError{Sheet: "patrimonios", Op: "read", Err: errors.New("googleapi: Error 429: quota for project 1234 exceeded")}}
	users := failingUsers{err: fmt.Errorf("%w: open users: dial tcp 10.0.0.5:3306: refused", rowproxy.ErrUnavailable)}
	h := NewAdminHandler(items, users, staticMonitor{}, "google", "gcs", logging.Discard())

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Store map[string]interface{} `json:"store"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UPSTREAM_FAILURE", body.Data.Store["items_error"])
	assert.Equal(t, "STORE_UNAVAILABLE", body.Data.Store["users_error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.NotContains(t, rec.Body.String(), "quota")
}
