package reporter

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/actionsum/actionlog/internal/bucket"
	"github.com/actionsum/actionlog/internal/layout"
	"github.com/actionsum/actionlog/pkg/window"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DefaultTemplateName is the page template looked up on the search path.
const DefaultTemplateName = "table.html"

// ErrRender marks a failed report regeneration. The row append it follows is already durable.
var ErrRender = errors.New("render error")

//go:embed templates/table.html
var builtin embed.FS

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Row is one line of the per-day row store.
type Row struct {
	Timestamp    string
	ClassName    string
	Title        string
	ArtifactPath string // relative to the day directory
}

// Reporter appends observation rows and renders the daily page.
type Reporter struct {
	layout       *layout.Layout
	templateDir  string
	templateName string
	policy       *bluemonday.Policy
}

// New creates a reporter. Templates are looked up in templateDir first, then in the day directory.
func New(l *layout.Layout, templateDir, templateName string) *Reporter {
	if templateName == "" {
		templateName = DefaultTemplateName
	}
	return &Reporter{
		layout:       l,
		templateDir:  templateDir,
		templateName: templateName,
		policy:       rowPolicy(),
	}
}

// Record appends a row for obs and regenerates the daily report.
// A persistence error means the row was not stored. An ErrRender error means
// the row was stored but the page is stale.
func (r *Reporter) Record(obs *window.Observation, artifactPath string, b bucket.Bucket) (string, error) {
	row := Row{
		Timestamp:    b.Label(),
		ClassName:    obs.ClassName,
		Title:        obs.Title,
		ArtifactPath: r.layout.Rel(b, artifactPath),
	}
	if err := r.Append(row, b); err != nil {
		return "", err
	}
	return r.Render(b)
}

// Append writes one row to the day's row store.
func (r *Reporter) Append(row Row, b bucket.Bucket) error {
	return r.layout.AppendLine(r.layout.RowStorePath(b), r.FormatRow(row))
}

// FormatRow renders a row as a single table line. Class and title are encoded as text.
func (r *Reporter) FormatRow(row Row) string {
	href := (&url.URL{Path: row.ArtifactPath}).String()
	return fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td>%s</td><td><a href="%s">screenshot</a></td></tr>`,
		html.EscapeString(row.Timestamp),
		cell(row.ClassName),
		cell(row.Title),
		html.EscapeString(href),
	)
}

func cell(s string) string {
	return html.EscapeString(newlines.Replace(s))
}

// rowPolicy admits only the markup FormatRow emits. The row store is a plain
// file under the output root and may have been edited by hand.
func rowPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("tr", "td")
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	return p
}

// Render regenerates the day's report from the current row store.
func (r *Reporter) Render(b bucket.Bucket) (string, error) {
	dayDir := r.layout.DayDir(b)
	search := r.searchPath(dayDir)

	tmpl, err := r.loadTemplate(search)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Title string }{Title: b.Title()}); err != nil {
		return "", errors.Wrapf(ErrRender, "execute %s: %v", r.templateName, err)
	}

	path := r.layout.ReportPath(b)
	if err := r.layout.WriteFile(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Reporter) searchPath(dayDir string) []string {
	var dirs []string
	if r.templateDir != "" {
		dirs = append(dirs, r.templateDir)
	}
	return append(dirs, dayDir)
}

func (r *Reporter) loadTemplate(search []string) (*template.Template, error) {
	funcs := template.FuncMap{
		"include": func(name string) (template.HTML, error) {
			data, ok, err := r.find(search, name)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("%s not found in %s", name, strings.Join(search, ", "))
			}
			if name == layout.RowStoreName {
				return template.HTML(r.policy.SanitizeBytes(data)), nil
			}
			return template.HTML(data), nil
		},
	}

	data, ok, err := r.find(search, r.templateName)
	if err != nil {
		return nil, errors.Wrapf(ErrRender, "read template %s: %v", r.templateName, err)
	}
	if !ok && r.templateName == DefaultTemplateName {
		data, err = builtin.ReadFile("templates/" + DefaultTemplateName)
		if err != nil {
			return nil, errors.Wrapf(ErrRender, "read builtin template: %v", err)
		}
		ok = true
	}
	if !ok {
		return nil, errors.Wrapf(ErrRender, "template %s not found in %s", r.templateName, strings.Join(search, ", "))
	}

	tmpl, err := template.New(r.templateName).Funcs(funcs).Parse(string(data))
	if err != nil {
		return nil, errors.Wrapf(ErrRender, "parse %s: %v", r.templateName, err)
	}
	return tmpl, nil
}

// find returns the first file called name on the search path.
func (r *Reporter) find(search []string, name string) ([]byte, bool, error) {
	fs := r.layout.Fs()
	for _, dir := range search {
		data, err := afero.ReadFile(fs, filepath.Join(dir, name))
		if err == nil {
			return data, true, nil
		}
		if !os.IsNotExist(err) {
			return nil, false, err
		}
	}
	return nil, false, nil
}
