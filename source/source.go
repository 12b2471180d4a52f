// Package source reads the text documents a corpus is built from.
//
// Locations are resolved through github.com/viant/afs, so a source may be a
// local directory or any URL an afs connector is registered for.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

// DefaultExtension selects the documents read by a Loader.
const DefaultExtension = ".txt"

// Service abstracts listing and downloading objects.
type Service interface {
	List(ctx context.Context, location string) ([]storage.Object, error)
	Download(ctx context.Context, object storage.Object) ([]byte, error)
}

type afsService struct {
	svc afs.Service
}

// NewAFS returns a Service backed by the default afs service.
func NewAFS() Service {
	return &afsService{svc: afs.New()}
}

func (a *afsService) List(ctx context.Context, location string) ([]storage.Object, error) {
	return a.svc.List(ctx, location)
}

func (a *afsService) Download(ctx context.Context, object storage.Object) ([]byte, error) {
	return a.svc.Download(ctx, object)
}

// Document is one source file with all whitespace removed.
type Document struct {
	URL  string
	Text string
}

// Options configures a Loader.
type Options struct {
	// Extension is the file suffix to read, matched case-insensitively.
	Extension string
	// Service lists and downloads objects. Nil uses NewAFS.
	Service Service
	// Logger receives skipped-file notices. Nil discards them.
	Logger *slog.Logger
}

// Loader walks a location recursively and reads matching files.
type Loader struct {
	fs     Service
	ext    string
	logger *slog.Logger
}

// New creates a Loader.
func New(optFns ...func(o *Options)) *Loader {
	opts := Options{Extension: DefaultExtension}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Service == nil {
		opts.Service = NewAFS()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		fs:     opts.Service,
		ext:    strings.ToLower(opts.Extension),
		logger: opts.Logger,
	}
}

// Load returns every matching document under location, ordered by URL.
// Documents that are empty after whitespace removal are skipped.
func (l *Loader) Load(ctx context.Context, location string) ([]Document, error) {
	norm, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}

	var docs []Document
	if err := l.walk(ctx, norm, &docs); err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URL < docs[j].URL })
	return docs, nil
}

func (l *Loader) walk(ctx context.Context, location string, docs *[]Document) error {
	objects, err := l.fs.List(ctx, location)
	if err != nil {
		return fmt.Errorf("source: list %s: %w", location, err)
	}

	base := url.Normalize(location, file)
	for _, object := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if object.IsDir() {
			if url.Equals(object.URL(), base) || url.Equals(url.Path(object.URL()), url.Path(base)) {
				continue
			}
			if err := l.walk(ctx, url.Join(location, object.Name()), docs); err != nil {
				return err
			}
			continue
		}
		if !strings.EqualFold(filepath.Ext(object.Name()), l.ext) {
			continue
		}

		data, err := l.fs.Download(ctx, object)
		if err != nil {
			return fmt.Errorf("source: read %s: %w", object.URL(), err)
		}
		text := Compact(string(data))
		if text == "" {
			l.logger.Debug("skipping empty document", "url", object.URL())
			continue
		}
		*docs = append(*docs, Document{URL: object.URL(), Text: text})
	}
	return nil
}

const file = "file"

// normalizeLocation turns a relative or absolute OS path into a file URL and
// leaves URLs with a scheme unchanged.
func normalizeLocation(location string) (string, error) {
	norm := location
	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		abs, err := filepath.Abs(norm)
		if err != nil {
			return "", fmt.Errorf("source: resolve %s: %w", location, err)
		}
		norm = abs
	}
	if url.Scheme(norm, "") == "" {
		norm = url.ToFileURL(norm)
	}
	return norm, nil
}

// Compact removes every Unicode whitespace character from s.
func Compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// Texts returns the text of every document.
func Texts(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}
