package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"patrimonio-api/internal/media"
	"patrimonio-api/internal/model"
	"patrimonio-api/internal/service"
	"patrimonio-api/pkg/apierror"
	"patrimonio-api/pkg/response"
)

// IdempotencyHeader carries a client-chosen key that makes item creation safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader is set on a create response served from an earlier request.
const ReplayedHeader = "Idempotent-Replayed"

// InventoryHandler handles inventory item HTTP requests.
type InventoryHandler struct {
	svc       *service.InventoryService
	validate  *validator.Validate
	maxUpload int64
	log       logrus.FieldLogger
}

// NewInventoryHandler creates a new inventory handler. maxUpload bounds the
// multipart body size.
func NewInventoryHandler(svc *service.InventoryService, maxUpload int64, logger logrus.FieldLogger) *InventoryHandler {
	return &InventoryHandler{
		svc:       svc,
		validate:  newValidator(),
		maxUpload: maxUpload,
		log:       logger.WithField("component", "inventory-handler"),
	}
}

// itemForm is a create submission. Portuguese field names are accepted too.
type itemForm struct {
	ID       string `form:"id" validate:"required,max=128"`
	Name     string `form:"name" validate:"required,max=256"`
	Category string `form:"category" validate:"required,max=128"`
	Location string `form:"location" validate:"required,max=256"`
}

// itemEditForm is an edit submission.
type itemEditForm struct {
	Name     string `form:"name" validate:"required,max=256"`
	Category string `form:"category" validate:"required,max=128"`
	Location string `form:"location" validate:"required,max=256"`
	RowNum   int    `form:"row_num" validate:"omitempty,min=2"`
}

func formValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.FormValue(name)); v != "" {
			return v
		}
	}
	return ""
}

// parseForm accepts multipart and urlencoded bodies.
func (h *InventoryHandler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	err := r.ParseMultipartForm(h.maxUpload)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return media.ErrTooLarge
	}
	if err != nil {
		return apierror.BadRequest("invalid form body")
	}
	return nil
}

// photo returns the uploaded photo, or nil when none was sent.
func photo(r *http.Request) (*media.Upload, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}
	for _, field := range []string{"photo", "foto"} {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, func() {}, apierror.BadRequest("invalid photo upload")
		}
		if header.Filename == "" {
			file.Close()
			continue
		}
		return &media.Upload{Filename: header.Filename, Body: file}, func() { _ = file.Close() }, nil
	}
	return nil, func() {}, nil
}

// Register handles POST /api/v1/items
func (h *InventoryHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	form := itemForm{
		ID:       formValue(r, "id"),
		Name:     formValue(r, "name", "nome"),
		Category: formValue(r, "category", "categoria"),
		Location: formValue(r, "location", "local"),
	}
	if err := h.validate.Struct(form); err != nil {
		response.Error(w, validationError(err))
		return
	}

	upload, done, err := photo(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer done()

	res, err := h.svc.RegisterItem(r.Context(), service.RegisterItemInput{
		ID:             form.ID,
		Name:           form.Name,
		Category:       form.Category,
		Location:       form.Location,
		Photo:          upload,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	if res.Replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	response.Created(w, "Item registered", res.Item)
}

// List handles GET /api/v1/items
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.List(w, items, len(items))
}

// Get handles GET /api/v1/items/{id}
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, item)
}

// Update handles PUT /api/v1/items/{id}
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	form := itemEditForm{
		Name:     formValue(r, "name", "nome"),
		Category: formValue(r, "category", "categoria"),
		Location: formValue(r, "location", "local"),
	}
	if raw := formValue(r, "row_num"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, apierror.ValidationError("Missing or invalid fields",
				apierror.FieldError{Field: "row_num", Message: "must be a number"}))
			return
		}
		form.RowNum = n
	}
	if err := h.validate.Struct(form); err != nil {
		response.Error(w, validationError(err))
		return
	}

	upload, done, err := photo(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer done()

	item, err := h.svc.UpdateItem(r.Context(), chi.URLParam(r, "id"), service.UpdateItemInput{
		RowHint:  form.RowNum,
		Name:     form.Name,
		Category: form.Category,
		Location: form.Location,
		Photo:    upload,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Message(w, http.StatusOK, "Item updated", item)
}

// deleteRequest is the optional JSON body of a delete.
type deleteRequest struct {
	RowNum int `json:"row_num"`
}

// Delete handles DELETE /api/v1/items/{id}. The row number hint comes from
// the row_num query parameter or JSON body.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var rowHint int
	if raw := r.URL.Query().Get("row_num"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, apierror.BadRequest("row_num must be a number"))
			return
		}
		rowHint = n
	} else if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req deleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, apierror.BadRequest("invalid request body"))
			return
		}
		rowHint = req.RowNum
	}

	if err := h.svc.DeleteItem(r.Context(), chi.URLParam(r, "id"), rowHint); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Message(w, http.StatusOK, "Item deleted", nil)
}

var exportHeader = []string{"ID", "Name", "Category", "Location", "Photo URL", "Created At"}

// Export handles GET /api/v1/items/export.xlsx
func (h *InventoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	f, err := buildExport(items)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("patrimonios-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(w); err != nil {
		h.log.WithError(err).Error("Failed to write export")
	}
}

func buildExport(items []*model.InventoryItem) (*excelize.File, error) {
	const sheet = "Patrimonios"

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, err
	}
	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := item.Values()
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
