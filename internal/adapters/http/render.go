package web

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"path"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"rancho/internal/adapters/http/middleware"
	"rancho/internal/domain/item"
)

//go:embed templates/*.html
var templatesFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// pricePrinter formats prices the way the menu is read: R$ 1.234,50.
var pricePrinter = message.NewPrinter(language.BrazilianPortuguese)

// defaultImageURL is served from the static tree so it works whatever the upload dir is.
const defaultImageURL = "/img/default.svg"

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func formatPrice(v float64) string {
	return pricePrinter.Sprintf("R$ %.2f", v)
}

func imageURL(name string) string {
	if name == "" || name == item.DefaultImage {
		return defaultImageURL
	}
	return "/uploads/" + path.Base(name)
}

// renderTemplate renders a page inside the shared layout with a 200 status.
func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderTemplateStatus(w, r, http.StatusOK, templateName, data)
}

// renderTemplateStatus renders into a buffer first so a template failure never sends a half page.
func renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	loggedIn := middleware.IsAuthenticated(r.Context())
	funcMap := template.FuncMap{
		"isLoggedIn":     func() bool { return loggedIn },
		"csrfField":      func() template.HTML { return csrf.TemplateField(r) },
		"csrfToken":      func() string { return csrf.Token(r) },
		"renderMarkdown": renderMarkdown,
		"formatPrice":    formatPrice,
		"imageURL":       imageURL,
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templatesFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
