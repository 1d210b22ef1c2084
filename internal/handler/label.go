package handler

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/label"
)

const qrSize = 256

// LabelHandler serves printable QR labels.
type LabelHandler struct {
	renderer *label.Renderer
	qrPath   string
	log      logrus.FieldLogger
}

// NewLabelHandler creates a label handler. qrPath is where QRCode is routed.
func NewLabelHandler(renderer *label.Renderer, qrPath string, logger logrus.FieldLogger) *LabelHandler {
	return &LabelHandler{renderer: renderer, qrPath: qrPath, log: logger.WithField("component", "label-handler")}
}

// Page handles GET /labels?id=&name=
func (h *LabelHandler) Page(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = q.Get("nome")
	}
	page := label.NewPage(q.Get("id"), name, h.qrPath)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, page); err != nil {
		h.log.WithError(err).Error("Failed to render label")
	}
}

// QRCode handles GET /labels/qr.png?id=
func (h *LabelHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		id = label.DefaultID
	}

	png, err := label.QRCode(id, qrSize)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}
