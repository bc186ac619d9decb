package page

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/ssr/internal/errors"
)

// FileType is the role of a page file, taken from its name.
type FileType string

const (
	TypePage   FileType = "page"        // about.page
	TypeServer FileType = "page.server" // about.page.server
	TypeClient FileType = "page.client" // about.page.client
	TypeRoute  FileType = "page.route"  // about.page.route
	TypeCSS    FileType = "css"         // about.css
)

// Well-known export names.
const (
	HookRender            = "render"
	HookOnBeforeRender    = "onBeforeRender"
	HookPrerender         = "prerender"
	HookOnBeforePrerender = "onBeforePrerender"
	HookOnBeforeRoute     = "onBeforeRoute"
	ExportDoNotPrerender  = "doNotPrerender"
	ExportPassToClient    = "passToClient"
	ExportRoute           = "default"
)

// Exports are the named values a page file provides.
type Exports map[string]any

// LoadFunc loads the exports of a file.
type LoadFunc func(ctx context.Context) (Exports, error)

// File is one file of a page. Its exports are loaded at most once.
type File struct {
	FilePath    string
	Type        FileType
	ExportNames []string

	load    LoadFunc
	once    sync.Once
	exports Exports
	err     error
}

// NewFile returns a file whose exports are known up front.
func NewFile(filePath string, exports Exports) *File {
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return NewLazyFile(filePath, names, func(context.Context) (Exports, error) {
		return exports, nil
	})
}

// NewLazyFile returns a file whose exports are produced by load on first use.
// exportNames must list what load will return.
func NewLazyFile(filePath string, exportNames []string, load LoadFunc) *File {
	return &File{
		FilePath:    filePath,
		Type:        fileType(filePath),
		ExportNames: exportNames,
		load:        load,
	}
}

// fileType derives the type from the file name. Unknown names return "".
func fileType(filePath string) FileType {
	base := path.Base(filePath)
	if strings.HasSuffix(base, ".css") {
		return TypeCSS
	}
	i := strings.Index(base, ".page")
	if i < 0 {
		return ""
	}
	rest := base[i+len(".page"):]
	switch {
	case strings.HasPrefix(rest, ".server"):
		return TypeServer
	case strings.HasPrefix(rest, ".client"):
		return TypeClient
	case strings.HasPrefix(rest, ".route"):
		return TypeRoute
	case rest == "" || strings.Count(rest, ".") == 1:
		return TypePage
	}
	return ""
}

// Load loads the exports of the file. Later calls return the first result.
func (f *File) Load(ctx context.Context) error {
	f.once.Do(func() {
		exports, err := f.load(ctx)
		if err != nil {
			f.err = errors.New("E131").WithSource(f.FilePath).Wrap(err)
			return
		}
		if exports == nil {
			exports = Exports{}
		}
		f.exports = exports
	})
	return f.err
}

// Loaded reports whether Load completed successfully.
func (f *File) Loaded() bool {
	return f.exports != nil
}

// Exports returns the loaded exports, or nil before Load.
func (f *File) Exports() Exports {
	return f.exports
}

// Export returns a loaded export.
func (f *File) Export(name string) (any, bool) {
	v, ok := f.exports[name]
	return v, ok
}

// HasExport reports whether the file declares the export. It does not
// require the file to be loaded.
func (f *File) HasExport(name string) bool {
	for _, n := range f.ExportNames {
		if n == name {
			return true
		}
	}
	return false
}

// PageID returns the id of the page the file belongs to: its path without
// the .page suffix. CSS files have no page id.
func (f *File) PageID() string {
	if f.Type == TypeCSS {
		return ""
	}
	base := path.Base(f.FilePath)
	i := strings.Index(base, ".page")
	if i < 0 {
		return ""
	}
	return strings.TrimSuffix(f.FilePath, base) + base[:i]
}

// Dir returns the directory of the file.
func (f *File) Dir() string {
	return path.Dir(f.FilePath)
}

// IsDefault reports whether the file is a _default file, applying to every
// page below its directory.
func (f *File) IsDefault() bool {
	return path.Base(f.PageID()) == "_default"
}

// IsError reports whether the file belongs to the _error page.
func (f *File) IsError() bool {
	return path.Base(f.PageID()) == "_error"
}

// validate checks the file against what the loaded exports provide.
func (f *File) validate() error {
	if f.Type == "" {
		return errors.New("E220").
			WithSource(f.FilePath).
			WithDetail("File name should end with .page, .page.server, .page.client, .page.route or .css")
	}
	if !strings.HasPrefix(f.FilePath, "/") {
		return errors.New("E220").
			WithSource(f.FilePath).
			WithDetail("File path should be absolute from the project root, e.g. /pages/index.page")
	}
	return nil
}
