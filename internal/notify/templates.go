package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/joao-fontenele/storefront/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"price": domain.FormatPrice,
}).ParseFS(templateFS, "templates/*.html"))

type orderEmailData struct {
	domain.OrderCompletedEvent
	Shop ShopInfo
}

type contactEmailData struct {
	Email   string
	Message string
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
