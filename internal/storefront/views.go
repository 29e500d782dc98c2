package storefront

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

//go:embed views/*.html
var viewFS embed.FS

var pages = []string{"index", "checkout", "privacy"}

// Views holds one parsed template set per page, each combined with the
// shared layout.
type Views struct {
	pages map[string]*template.Template
}

func NewViews() (*Views, error) {
	funcs := template.FuncMap{"price": domain.FormatPrice}

	v := &Views{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(viewFS, "views/layout.html", "views/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", page, err)
		}
		v.pages[page] = tmpl
	}
	return v, nil
}

// Render executes the page into a buffer first so a template error never
// leaves a half-written response.
func (v *Views) Render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("unknown view %s", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
