// Package label renders printable QR labels for inventory items.
package label

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultID is shown when a label is requested without an id.
	DefaultID = "ERRO"
	// DefaultName is shown when a label is requested without a name.
	DefaultName = "Item sem nome"
)

// MaxContentLength is the most bytes a medium recovery QR code holds.
const MaxContentLength = 2331

// ErrContentTooLong is returned when content does not fit in a QR code.
var ErrContentTooLong = errors.New("label: content too long for a QR code")

//go:embed templates/label.html
var templates embed.FS

// QRCode encodes content as a PNG of size x size pixels.
func QRCode(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("label: empty QR content")
	}
	if len(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrContentTooLong, len(content))
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too long") {
			return nil, fmt.Errorf("%w: %w", ErrContentTooLong, err)
		}
		return nil, fmt.Errorf("label: encode QR: %w", err)
	}
	return png, nil
}

// Page is the data rendered on a label.
type Page struct {
	ID        string
	Name      string
	QRCodeURL string
}

// NewPage fills defaults for missing fields. qrPath is the endpoint serving
// the QR image; the id is passed as its query parameter.
func NewPage(id, name, qrPath string) Page {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		id = DefaultID
	}
	if name == "" {
		name = DefaultName
	}
	return Page{ID: id, Name: name, QRCodeURL: qrPath + "?id=" + url.QueryEscape(id)}
}

// Renderer writes the label HTML page.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templates, "templates/label.html")
	if err != nil {
		return nil, fmt.Errorf("label: parse template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the page for p.
func (r *Renderer) Render(w io.Writer, p Page) error {
	return r.tmpl.ExecuteTemplate(w, "label.html", p)
}
