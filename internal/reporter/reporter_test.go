package reporter

import (
	"strings"
	"testing"
	"time"

	"github.com/actionsum/actionlog/internal/bucket"
	"github.com/actionsum/actionlog/internal/layout"
	"github.com/actionsum/actionlog/pkg/window"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

func setup(t *testing.T) (afero.Fs, *layout.Layout, *Reporter) {
	t.Helper()
	fs := afero.NewMemMapFs()
	l := layout.New(fs, "/logs")
	return fs, l, New(l, "/templates", "")
}

func testBucket(sec int) bucket.Bucket {
	return bucket.Bucket{Time: time.Date(2024, 6, 1, 10, 0, sec, 0, time.UTC)}
}

func obs(class, title string) *window.Observation {
	return &window.Observation{
		ClassName: class,
		Title:     title,
		Geometry:  window.Geometry{Width: 800, Height: 600},
	}
}

func readLines(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRecord(t *testing.T) {
	fs, l, r := setup(t)
	b := testBucket(0)
	artifact := l.ArtifactPath(b, "Firefox")

	reportPath, err := r.Record(obs("Firefox", "Docs"), artifact, b)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if reportPath != "/logs/20240601/report_20240601.html" {
		t.Errorf("report path = %s", reportPath)
	}

	rows := readLines(t, fs, l.RowStorePath(b))
	if len(rows) != 1 {
		t.Fatalf("row count = %d, want 1", len(rows))
	}
	want := `<tr><td>2024-06-01 10:00:00</td><td>Firefox</td><td>Docs</td><td><a href="10/screenshot_2024-06-01T10:00:00_Firefox.png">screenshot</a></td></tr>`
	if rows[0] != want {
		t.Errorf("row = %s\nwant  %s", rows[0], want)
	}

	report, err := afero.ReadFile(fs, reportPath)
	if err != nil {
		t.Fatalf("ReadFile(report) error: %v", err)
	}
	if !strings.Contains(string(report), rows[0]) {
		t.Error("report does not contain the appended row")
	}
	if !strings.Contains(string(report), "<h1>2024 June 01</h1>") {
		t.Error("report does not contain the date title")
	}
}

func TestRowsAppendOnly(t *testing.T) {
	fs, l, r := setup(t)
	var previous []string

	for i := 0; i < 6; i++ {
		b := testBucket(i * 10)
		title := "window " + string(rune('A'+i))
		if _, err := r.Record(obs("Term", title), l.ArtifactPath(b, "Term"), b); err != nil {
			t.Fatalf("Record(%d) error: %v", i, err)
		}

		rows := readLines(t, fs, l.RowStorePath(b))
		if len(rows) != i+1 {
			t.Fatalf("after pass %d row count = %d, want %d", i, len(rows), i+1)
		}
		for j, prev := range previous {
			if rows[j] != prev {
				t.Fatalf("row %d changed after pass %d", j, i)
			}
		}
		if !strings.Contains(rows[i], title) {
			t.Errorf("row %d = %s, want title %s", i, rows[i], title)
		}
		previous = rows
	}
}

func TestRenderIdempotent(t *testing.T) {
	fs, l, r := setup(t)
	b := testBucket(0)
	if err := r.Append(Row{Timestamp: b.Label(), ClassName: "Firefox", Title: "Docs", ArtifactPath: "10/x.png"}, b); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	path, err := r.Render(b)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	first, _ := afero.ReadFile(fs, path)

	if _, err := r.Render(b); err != nil {
		t.Fatalf("second Render() error: %v", err)
	}
	second, _ := afero.ReadFile(fs, path)

	if string(first) != string(second) {
		t.Error("two renders of the same row store differ")
	}
	if l.ReportPath(b) != path {
		t.Errorf("Render() path = %s, want %s", path, l.ReportPath(b))
	}
}

func TestTemplateSearchPath(t *testing.T) {
	fs, l, r := setup(t)
	b := testBucket(0)
	if err := afero.WriteFile(fs, "/templates/table.html", []byte(`custom {{.Title}}: {{include "tablecontents.html"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	// the day directory copy is shadowed by the template directory
	if err := afero.WriteFile(fs, "/logs/20240601/table.html", []byte(`day {{.Title}}`), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := r.Record(obs("Firefox", "Docs"), l.ArtifactPath(b, "Firefox"), b)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	data, _ := afero.ReadFile(fs, path)
	if !strings.HasPrefix(string(data), "custom 2024 June 01: <tr>") {
		t.Errorf("report = %s", data)
	}
}

func TestTemplateFromDayDir(t *testing.T) {
	fs, l, _ := setup(t)
	r := New(l, "", "page.html")
	b := testBucket(0)
	if err := afero.WriteFile(fs, "/logs/20240601/page.html", []byte(`day {{.Title}}`), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := r.Record(obs("Firefox", "Docs"), l.ArtifactPath(b, "Firefox"), b)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	data, _ := afero.ReadFile(fs, path)
	if string(data) != "day 2024 June 01" {
		t.Errorf("report = %q", data)
	}
}

func TestRenderFailureKeepsRow(t *testing.T) {
	tests := []struct {
		name     string
		template string
		tmplName string
	}{
		{name: "Parse error", template: `{{.Title`, tmplName: "table.html"},
		{name: "Missing include", template: `{{include "nope.html"}}`, tmplName: "table.html"},
		{name: "Missing template", template: "", tmplName: "missing.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			l := layout.New(fs, "/logs")
			r := New(l, "/templates", tt.tmplName)
			if tt.template != "" {
				if err := afero.WriteFile(fs, "/templates/"+tt.tmplName, []byte(tt.template), 0644); err != nil {
					t.Fatal(err)
				}
			}
			b := testBucket(0)

			_, err := r.Record(obs("Firefox", "Docs"), l.ArtifactPath(b, "Firefox"), b)
			if !errors.Is(err, ErrRender) {
				t.Fatalf("Record() error = %v, want ErrRender", err)
			}
			if errors.Is(err, layout.ErrPersistence) {
				t.Error("render failure reported as persistence error")
			}

			rows := readLines(t, fs, l.RowStorePath(b))
			if len(rows) != 1 || !strings.Contains(rows[0], "Docs") {
				t.Errorf("row store = %v, want the appended row", rows)
			}
		})
	}
}

func TestAppendReadOnly(t *testing.T) {
	l := layout.New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/logs")
	r := New(l, "", "")
	b := testBucket(0)

	_, err := r.Record(obs("Firefox", "Docs"), l.ArtifactPath(b, "Firefox"), b)
	if !errors.Is(err, layout.ErrPersistence) {
		t.Errorf("Record() error = %v, want ErrPersistence", err)
	}
}

func TestFormatRowSanitizes(t *testing.T) {
	_, _, r := setup(t)

	line := r.FormatRow(Row{
		Timestamp:    "2024-06-01 10:00:00",
		ClassName:    "Evil",
		Title:        "<script>alert(1)</script>Docs\nsecond line",
		ArtifactPath: "10/screenshot_2024-06-01T10:00:00_a%20b.png",
	})

	if strings.Contains(line, "<script") {
		t.Errorf("row contains markup: %s", line)
	}
	if !strings.Contains(line, "<td>&lt;script&gt;alert(1)&lt;/script&gt;Docs second line</td>") {
		t.Errorf("title not encoded as text: %s", line)
	}
	if strings.Contains(line, "\n") {
		t.Errorf("row spans lines: %q", line)
	}
	if !strings.Contains(line, "Docs") {
		t.Errorf("row lost title text: %s", line)
	}
	if !strings.Contains(line, `href="10/screenshot_2024-06-01T10:00:00_a%2520b.png"`) {
		t.Errorf("artifact link not escaped: %s", line)
	}
}

func TestFormatRowKeepsPlainText(t *testing.T) {
	_, _, r := setup(t)

	tests := []struct {
		title    string
		expected string
	}{
		{"a<b.go - Vim", "a&lt;b.go - Vim"},
		{"if x<y {", "if x&lt;y {"},
		{"List<String> - IntelliJ", "List&lt;String&gt; - IntelliJ"},
		{"R&D <notes>", "R&amp;D &lt;notes&gt;"},
		{`say "hi"`, "say &#34;hi&#34;"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			line := r.FormatRow(Row{Timestamp: "2024-06-01 10:00:00", ClassName: "Code", Title: tt.title, ArtifactPath: "10/x.png"})
			if !strings.Contains(line, "<td>"+tt.expected+"</td>") {
				t.Errorf("FormatRow(%q) = %s, want cell %s", tt.title, line, tt.expected)
			}
		})
	}
}

func TestRenderEncodedTitleSurvives(t *testing.T) {
	fs, l, r := setup(t)
	b := testBucket(0)

	path, err := r.Record(obs("Vim", "a<b.go - Vim"), l.ArtifactPath(b, "Vim"), b)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	rows := readLines(t, fs, l.RowStorePath(b))
	report, _ := afero.ReadFile(fs, path)
	if !strings.Contains(string(report), rows[0]) {
		t.Errorf("report does not contain row %s:\n%s", rows[0], report)
	}
	if !strings.Contains(string(report), "a&lt;b.go - Vim") {
		t.Error("report lost the title text")
	}
}

func TestRenderSanitizesEditedRowStore(t *testing.T) {
	fs, l, r := setup(t)
	b := testBucket(0)

	edited := `<tr><td>2024-06-01 10:00:00</td><td>Term</td><td><script>alert(1)</script>notes</td>` +
		`<td><a href="javascript:alert(1)">x</a> <a href="10/x.png" onclick="alert(1)">screenshot</a></td></tr>` + "\n"
	if err := afero.WriteFile(fs, l.RowStorePath(b), []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := r.Render(b)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	report, _ := afero.ReadFile(fs, path)

	for _, banned := range []string{"<script", "javascript:", "onclick"} {
		if strings.Contains(string(report), banned) {
			t.Errorf("report contains %q:\n%s", banned, report)
		}
	}
	if !strings.Contains(string(report), `<a href="10/x.png">screenshot</a>`) {
		t.Errorf("report lost the screenshot link:\n%s", report)
	}
	if !strings.Contains(string(report), "<td>Term</td>") {
		t.Errorf("report lost plain cells:\n%s", report)
	}
	// the row store itself is left as written
	stored, _ := afero.ReadFile(fs, l.RowStorePath(b))
	if string(stored) != edited {
		t.Error("Render() modified the row store")
	}
}
