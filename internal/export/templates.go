package export

import (
	"bytes"
	"html/template"
	"sort"
	"strings"
	"time"
)

var dossierTemplate = template.Must(template.New("dossier").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ReplaceAll(s[1:], "_", " ")
	},
	"join": strings.Join,
	"profiles": func(m map[string]string) []profileRow {
		rows := make([]profileRow, 0, len(m))
		for k, v := range m {
			rows = append(rows, profileRow{Platform: k, URL: v})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Platform < rows[j].Platform })
		return rows
	},
}).Parse(dossierHTML))

type profileRow struct {
	Platform string
	URL      string
}

// RenderDossierHTML renders the dossier template.
func RenderDossierHTML(d Dossier) (string, error) {
	var buf bytes.Buffer
	if err := dossierTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const dossierHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Lead.Name}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.4rem; margin-bottom: 0.2rem; }
    h2 { margin-top: 1.6rem; font-size: 1.1rem; text-transform: uppercase; color: #444; }
    table { border-collapse: collapse; width: 100%; }
    td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; vertical-align: top; }
    th { width: 28%; color: #555; font-weight: normal; }
    .meta { color: #666; font-size: 0.85em; }
    .score { font-size: 1.4rem; font-weight: bold; }
    .note { padding: 0.6rem; margin: 0.5rem 0; border-left: 4px solid #999; background: #f7f7f7; }
  </style>
</head>
<body>
  <h1>{{.Lead.Name}}</h1>
  <div class="meta">Prepared {{if .PreparedBy}}by {{.PreparedBy}} {{end}}on {{formatDate .GeneratedAt}}</div>

  <h2>Profile</h2>
  <table>
    <tr><th>Status</th><td>{{title .Lead.Status}}</td></tr>
    <tr><th>Score</th><td class="score">{{.Lead.Score}}</td></tr>
    <tr><th>Source</th><td>{{title .Lead.Source}}</td></tr>
    {{with deref .Lead.Company}}<tr><th>Company</th><td>{{.}}</td></tr>{{end}}
    {{with deref .Lead.Position}}<tr><th>Position</th><td>{{.}}</td></tr>{{end}}
    {{with deref .Lead.Email}}<tr><th>Email</th><td>{{.}}</td></tr>{{end}}
    {{with deref .Lead.Phone}}<tr><th>Phone</th><td>{{.}}</td></tr>{{end}}
    {{with deref .Lead.Website}}<tr><th>Website</th><td>{{.}}</td></tr>{{end}}
    {{with deref .Lead.Address}}<tr><th>Address</th><td>{{.}}</td></tr>{{end}}
    {{if .Lead.Tags}}<tr><th>Tags</th><td>{{join .Lead.Tags ", "}}</td></tr>{{end}}
    {{range profiles .Lead.SocialProfiles}}<tr><th>{{title .Platform}}</th><td>{{.URL}}</td></tr>{{end}}
    <tr><th>Added</th><td>{{formatDate .Lead.CreatedAt}}</td></tr>
  </table>

  {{if .OpenTasks}}
  <h2>Open tasks</h2>
  <table>
    {{range .OpenTasks}}<tr><th>{{title .Priority}}</th><td>{{.Title}}{{with .DueDate}} <span class="meta">(due {{.}})</span>{{end}}</td></tr>{{end}}
  </table>
  {{end}}

  {{if .Notes}}
  <h2>Notes</h2>
  {{range .Notes}}<div class="note" style="border-left-color: {{.Color}}"><strong>{{.Title}}</strong><div>{{.Content}}</div></div>{{end}}
  {{end}}

  {{if .Activity}}
  <h2>Recent activity</h2>
  <table>
    {{range .Activity}}<tr><th>{{formatDate .CreatedAt}}</th><td>{{.Action}}{{with .Details}}: {{.}}{{end}}</td></tr>{{end}}
  </table>
  {{end}}
</body>
</html>`
