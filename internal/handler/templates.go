package handler

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"login.html", "registro.html", "dashboard.html", "nuevo_cliente.html", "metodos_pago.html"}

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
	"percent": func(d decimal.Decimal) string {
		return d.Mul(decimal.NewFromInt(100)).StringFixed(0) + "%"
	},
}

func parseTemplates() (map[string]*template.Template, error) {
	set := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		set[page] = tmpl
	}
	return set, nil
}

type pageData struct {
	Title    string
	Username string
	Flash    *Flash
	Data     interface{}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data interface{}) {
	tmpl, ok := h.templates[page]
	if !ok {
		h.log.Errorf("Unknown template %s", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	username, _ := userID(r)
	pd := pageData{Title: title, Username: username, Flash: h.popFlash(w, r), Data: data}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", pd); err != nil {
		h.log.Errorf("Failed to render %s: %v", page, err)
	}
}
