package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"patrimonio-api/internal/cache"
	"patrimonio-api/internal/handler"
	"patrimonio-api/internal/label"
	"patrimonio-api/internal/lock"
	"patrimonio-api/internal/logging"
	"patrimonio-api/internal/media"
	"patrimonio-api/internal/middleware"
	"patrimonio-api/internal/repository"
	"patrimonio-api/internal/rowproxy"
	"patrimonio-api/internal/service"
)

const cookieName = "patrimonio_session"

// flakyWorkbook lets a test take the store offline.
type flakyWorkbook struct {
	rowproxy.Workbook
	down bool
}

func (w *flakyWorkbook) Ping(ctx context.Context) error {
	if w.down {
		return errors.New("connection refused")
	}
	return w.Workbook.Ping(ctx)
}

type testServer struct {
	handler    http.Handler
	wb         *flakyWorkbook
	uploadsDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logging.Discard()

	excel, err := repository.NewExcelWorkbook("", logger)
	require.NoError(t, err)
	wb := &flakyWorkbook{Workbook: excel}
	t.Cleanup(func() { wb.Close() })

	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	locker := lock.NewLocal()

	items := repository.NewSheetItemRepository(wb, "patrimonios", locker)
	users := repository.NewSheetUserRepository(wb, "users", locker)
	monitor := rowproxy.NewMonitor(wb, 0)

	uploadsDir := t.TempDir()
	store, err := media.NewLocalStore(uploadsDir, "/uploads")
	require.NoError(t, err)
	photos := media.NewResolver(store, media.Options{MaxBytes: 1 << 20, MaxDimension: 512, KeyPrefix: "patrimonios"})

	renderer, err := label.NewRenderer()
	require.NoError(t, err)

	inventory := service.NewInventoryService(items, photos, c, time.Hour, logger)
	auth := service.NewAuthService(users, logger)
	sessions := service.NewSessionService("test-secret", time.Hour, c, logger)
	cookie := handler.SessionCookie{Name: cookieName}

	r := New(Config{
		Logger:           logger,
		Handler:          handler.New(monitor, "patrimonio-api", "test"),
		InventoryHandler: handler.NewInventoryHandler(inventory, 1<<20, logger),
		AdminHandler:     handler.NewAdminHandler(items, users, monitor, "excel", "local", logger),
		AuthHandler:      handler.NewAuthHandler(auth, sessions, cookie, logger),
		LabelHandler:     handler.NewLabelHandler(renderer, QRCodePath, logger),
		SessionAuth:      middleware.NewSessionMiddleware(sessions, cookieName),
		StoreGate:        middleware.NewStoreGate(monitor, logger),
		UploadsDir:       uploadsDir,
	})
	return &testServer{handler: r, wb: wb, uploadsDir: uploadsDir}
}

func (s *testServer) do(t *testing.T, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, cookie)
}

// login registers an account and returns its session cookie.
func (s *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := s.postJSON(t, "/api/v1/auth/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email": "ana@example.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

type itemFields struct {
	id, name, category, location string
	photoName                    string
	photo                        []byte
}

func multipartItem(t *testing.T, method, path string, f itemFields) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"id": f.id, "nome": f.name, "categoria": f.category, "local": f.location} {
		if v != "" {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if f.photo != nil {
		fw, err := mw.CreateFormFile("foto", f.photoName)
		require.NoError(t, err)
		_, err = fw.Write(f.photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Total int `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

type listedItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Location  string `json:"location"`
	PhotoURL  string `json:"photo_url"`
	CreatedAt string `json:"created_at"`
	RowNumber int    `json:"row_number"`
}

func (s *testServer) list(t *testing.T, cookie *http.Cookie) []listedItem {
	t.Helper()
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	var items []listedItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.NotNil(t, env.Meta)
	assert.Equal(t, len(items), env.Meta.Total)
	return items
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRegisterLoginAndCreateItem(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	rec := s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", itemFields{
		id: "A1", name: "Chair", category: "Furniture", location: "Room 3",
	}), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Message)

	items := s.list(t, cookie)
	require.Len(t, items, 1)
	assert.Equal(t, "A1", items[0].ID)
	assert.Equal(t, "Chair", items[0].Name)
	assert.Equal(t, "Furniture", items[0].Category)
	assert.Equal(t, "Room 3", items[0].Location)
	assert.Equal(t, "", items[0].PhotoURL)
	assert.Equal(t, 2, items[0].RowNumber)
	_, err := time.Parse("2006-01-02 15:04:05", items[0].CreatedAt)
	assert.NoError(t, err)
}

func TestLoginFailuresSetNoCookie(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	for _, creds := range []map[string]string{
		{"email": "ana@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "secret1"},
	} {
		rec := s.postJSON(t, "/api/v1/auth/login", creds, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Header().Values("Set-Cookie"))
		env := decode(t, rec)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Message)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	rec := s.postJSON(t, "/api/v1/auth/register", map[string]string{
		"name": "Other", "email": "ANA@example.com", "password": "secret2",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_KEY", decode(t, rec).Error.Code)
}

func TestItemsRequireSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil), &http.Cookie{Name: cookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDuplicateItemAndValidation(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	chair := itemFields{id: "A1", name: "Chair", category: "Furniture", location: "Room 3"}
	rec := s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", chair), cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	chair.name = "Table"
	rec = s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", chair), cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_KEY", decode(t, rec).Error.Code)

	rec = s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", itemFields{id: "B2", name: "Desk"}), cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)

	items := s.list(t, cookie)
	require.Len(t, items, 1)
	assert.Equal(t, "Chair", items[0].Name)
}

func TestCreateItemWithPhoto(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	rec := s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", itemFields{
		id: "P1", name: "Projector", category: "Electronics", location: "Room 1",
		photoName: "projector.png", photo: pngBytes(t, 40, 20),
	}), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	items := s.list(t, cookie)
	require.Len(t, items, 1)
	photoURL := items[0].PhotoURL
	require.True(t, strings.HasPrefix(photoURL, "/uploads/patrimonios/"), photoURL)

	_, err := os.Stat(filepath.Join(s.uploadsDir, strings.TrimPrefix(photoURL, "/uploads/")))
	assert.NoError(t, err)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, photoURL, nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// unsupported type is rejected and nothing is stored
	rec = s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", itemFields{
		id: "P2", name: "Doc", category: "Paper", location: "Room 1",
		photoName: "doc.pdf", photo: []byte("%PDF-1.4"),
	}), cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, s.list(t, cookie), 1)
}

func TestIdempotentCreate(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	fields := itemFields{id: "A1", name: "Chair", category: "Furniture", location: "Room 3"}
	for i := 0; i < 2; i++ {
		req := multipartItem(t, http.MethodPost, "/api/v1/items", fields)
		req.Header.Set(handler.IdempotencyHeader, "req-42")
		rec := s.do(t, req, cookie)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		if i == 1 {
			assert.Equal(t, "true", rec.Header().Get(handler.ReplayedHeader))
		}
	}
	assert.Len(t, s.list(t, cookie), 1)
}

func TestUpdateAndDeleteItem(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	for _, id := range []string{"A1", "B2", "C3"} {
		rec := s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", itemFields{
			id: id, name: "Item " + id, category: "Furniture", location: "Room 3",
		}), cookie)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := multipartItem(t, http.MethodPut, "/api/v1/items/C3", itemFields{name: "Cabinet", category: "Furniture", location: "Room 9"})
	rec := s.do(t, req, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/items/A1?row_num=2", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// C3 was listed at row 4 before the delete; the stale hint still deletes C3 only
	rec = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/items/C3?row_num=4", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	items := s.list(t, cookie)
	require.Len(t, items, 1)
	assert.Equal(t, "B2", items[0].ID)
	assert.Equal(t, 2, items[0].RowNumber)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items/C3", nil), cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/items/C3", nil), cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	rec := s.do(t, multipartItem(t, http.MethodPost, "/api/v1/items", itemFields{
		id: "A1", name: "Chair", category: "Furniture", location: "Room 3",
	}), cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items/export.xlsx", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Patrimonios")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[1][0])
}

func TestStoreUnavailable(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	s.wb.down = true

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil), cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "STORE_UNAVAILABLE", decode(t, rec).Error.Code)

	rec = s.postJSON(t, "/api/v1/auth/login", map[string]string{"email": "ana@example.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// liveness does not depend on the store
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.wb.down = false
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil), cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionAndLogout(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, string(decode(t, rec).Data))

	cookie := s.login(t)
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"authenticated":true`)

	rec = s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil), cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLabels(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/labels?id=A1&nome=Cadeira", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "A1")
	assert.Contains(t, body, "Cadeira")
	assert.Contains(t, body, QRCodePath+"?id=A1")

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/labels", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), label.DefaultID)
	assert.Contains(t, rec.Body.String(), label.DefaultName)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, QRCodePath+"?id=A1", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(rec.Body)
	assert.NoError(t, err)
}

func TestAdminStats(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Store struct {
			Items int `json:"items"`
			Users int `json:"users"`
		} `json:"store"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.Equal(t, 0, stats.Store.Items)
	assert.Equal(t, 1, stats.Store.Users)
}
