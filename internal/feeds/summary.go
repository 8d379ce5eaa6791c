package feeds

import (
	"io"
	"strings"
	"text/template"
	"time"
)

// Site describes the portfolio for the generated summary.
type Site struct {
	Title       string
	URL         string
	Description string
	Games       []string
}

type summarySource struct {
	Name  string
	Posts []Post
}

var summaryTmpl = template.Must(template.New("llms").Funcs(template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "undated"
		}
		return t.UTC().Format("2006-01-02")
	},
	"oneline": func(s string) string { return strings.Join(strings.Fields(s), " ") },
}).Parse(`# {{.Site.Title}}
{{if .Site.Description}}
> {{oneline .Site.Description}}
{{end}}{{if .Site.URL}}
Site: {{.Site.URL}}
{{end}}{{if .Site.Games}}
## Games
{{range .Site.Games}}
- {{.}}{{end}}
{{end}}
## Blog
{{range .Sources}}
### {{.Name}}
{{range .Posts}}
- [{{oneline .Title}}]({{.URL}}) ({{date .Date}}){{if .Summary}}: {{oneline .Summary}}{{end}}{{else}}
- no posts yet{{end}}
{{end}}
Generated: {{date .GeneratedAt}}
`))

// RenderSummary writes the plain-text site summary used for search and
// LLM indexing.
func RenderSummary(w io.Writer, doc Document, site Site) error {
	data := struct {
		Site        Site
		Sources     []summarySource
		GeneratedAt time.Time
	}{Site: site, GeneratedAt: doc.GeneratedAt}
	for _, name := range doc.Sources() {
		data.Sources = append(data.Sources, summarySource{Name: name, Posts: doc.Posts[name]})
	}
	return summaryTmpl.Execute(w, data)
}

// WriteSummary renders the summary to path atomically.
func WriteSummary(path string, doc Document, site Site) error {
	var sb strings.Builder
	if err := RenderSummary(&sb, doc, site); err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(sb.String()))
}
