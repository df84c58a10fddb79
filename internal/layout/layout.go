package layout

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/actionsum/actionlog/internal/bucket"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// RowStoreName is the per-day append-only row fragment.
	RowStoreName = "tablecontents.html"

	artifactExt = ".png"
	dirPerm     = 0755
)

// ErrPersistence marks a failure to write to the output root. It is fatal for the loop.
var ErrPersistence = errors.New("persistence error")

// Persistence wraps err as a persistence failure.
func Persistence(err error, msg string) error {
	return &persistenceError{msg: msg, err: err}
}

type persistenceError struct {
	msg string
	err error
}

func (e *persistenceError) Error() string { return e.msg + ": " + e.err.Error() }

func (e *persistenceError) Unwrap() error { return e.err }

func (e *persistenceError) Is(target error) bool { return target == ErrPersistence }

// Layout maps buckets to paths below the output root:
//
//	<root>/<YYYYMMDD>/<HH>/screenshot_<bucket>_<class>.png
//	<root>/<YYYYMMDD>/tablecontents.html
//	<root>/<YYYYMMDD>/report_<YYYYMMDD>.html
type Layout struct {
	fs   afero.Fs
	root string
}

// New creates a Layout rooted at root.
func New(fs afero.Fs, root string) *Layout {
	return &Layout{fs: fs, root: root}
}

// Fs returns the filesystem the layout writes to.
func (l *Layout) Fs() afero.Fs {
	return l.fs
}

// Root returns the output root.
func (l *Layout) Root() string {
	return l.root
}

func (l *Layout) DayDir(b bucket.Bucket) string {
	return filepath.Join(l.root, b.Day())
}

func (l *Layout) HourDir(b bucket.Bucket) string {
	return filepath.Join(l.DayDir(b), b.Hour())
}

func (l *Layout) RowStorePath(b bucket.Bucket) string {
	return filepath.Join(l.DayDir(b), RowStoreName)
}

func (l *Layout) ReportPath(b bucket.Bucket) string {
	return filepath.Join(l.DayDir(b), ReportName(b))
}

// ArtifactPath returns the screenshot path for a bucket and window class.
func (l *Layout) ArtifactPath(b bucket.Bucket, className string) string {
	return filepath.Join(l.HourDir(b), ArtifactName(b, className))
}

// ArtifactName joins the bucket key and class. The class is path-escaped so
// distinct classes never map onto the same file or escape the hour directory.
func ArtifactName(b bucket.Bucket, className string) string {
	return "screenshot_" + b.Key() + "_" + url.PathEscape(className) + artifactExt
}

// ReportName is the rendered daily page name.
func ReportName(b bucket.Bucket) string {
	return "report_" + b.Day() + ".html"
}

// EnsurePartition creates the day and hour directories. Existing directories are not an error.
func (l *Layout) EnsurePartition(b bucket.Bucket) error {
	dir := l.HourDir(b)
	if err := l.fs.MkdirAll(dir, dirPerm); err != nil {
		return Persistence(err, "failed to create partition "+dir)
	}
	return nil
}

// WriteFile writes data to path, replacing any existing file.
func (l *Layout) WriteFile(path string, data []byte) error {
	if err := afero.WriteFile(l.fs, path, data, 0644); err != nil {
		return Persistence(err, "failed to write "+path)
	}
	return nil
}

// AppendLine appends one line to path, creating the file if needed.
func (l *Layout) AppendLine(path, line string) error {
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Persistence(err, "failed to open "+path)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return Persistence(err, "failed to append to "+path)
	}
	if err := f.Close(); err != nil {
		return Persistence(err, "failed to close "+path)
	}
	return nil
}

// Rel returns path relative to the day directory of b, using forward slashes.
func (l *Layout) Rel(b bucket.Bucket, path string) string {
	rel, err := filepath.Rel(l.DayDir(b), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
