package page

import (
	"context"
	"path"
	"sort"
	"strings"
)

// Manifest is the set of page files composed into pages. It is read-only
// after NewManifest and safe to share.
type Manifest struct {
	files       []*File
	pages       map[string]*Page
	ids         []string
	defaults    []*File
	errorPageID string
}

// NewManifest composes files into pages. _default files apply to every
// page in their directory and below it.
func NewManifest(files []*File) (*Manifest, error) {
	m := &Manifest{
		files: files,
		pages: make(map[string]*Page),
	}

	own := make(map[string][]*File)
	for _, f := range files {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if f.Type == TypeCSS {
			continue
		}
		if f.IsDefault() {
			m.defaults = append(m.defaults, f)
			continue
		}
		id := f.PageID()
		own[id] = append(own[id], f)
	}

	for id, pageFiles := range own {
		sortFiles(pageFiles)
		p := &Page{ID: id, own: pageFiles}
		p.files = append(append([]*File{}, pageFiles...), m.defaultsFor(id)...)
		m.pages[id] = p
		m.ids = append(m.ids, id)
		if p.IsError() {
			m.errorPageID = id
		}
	}
	sort.Strings(m.ids)
	return m, nil
}

// defaultsFor returns the _default files applying to pageID, closest
// directory first.
func (m *Manifest) defaultsFor(pageID string) []*File {
	var matching []*File
	for _, f := range m.defaults {
		if isUnder(pageID, scopeDir(f)) {
			matching = append(matching, f)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		di, dj := depth(scopeDir(matching[i])), depth(scopeDir(matching[j]))
		if di != dj {
			return di > dj
		}
		return typeRank(matching[i].Type) < typeRank(matching[j].Type)
	})
	return matching
}

// scopeDir is the directory a _default file applies to. Files inside a
// _default directory apply to its parent.
func scopeDir(f *File) string {
	dir := f.Dir()
	if path.Base(dir) == "_default" {
		return path.Dir(dir)
	}
	return dir
}

func isUnder(pageID, dir string) bool {
	if dir == "/" {
		return true
	}
	return strings.HasPrefix(path.Dir(pageID)+"/", dir+"/")
}

func depth(dir string) int {
	if dir == "/" {
		return 0
	}
	return strings.Count(dir, "/")
}

func typeRank(t FileType) int {
	switch t {
	case TypeServer:
		return 0
	case TypePage:
		return 1
	case TypeRoute:
		return 2
	case TypeClient:
		return 3
	}
	return 4
}

func sortFiles(files []*File) {
	sort.SliceStable(files, func(i, j int) bool {
		return typeRank(files[i].Type) < typeRank(files[j].Type)
	})
}

// Files returns every file in the manifest, in registration order.
func (m *Manifest) Files() []*File {
	return m.files
}

// PageIDs returns the ids of all pages, sorted.
func (m *Manifest) PageIDs() []string {
	return m.ids
}

// Page returns the page with the given id, or nil.
func (m *Manifest) Page(id string) *Page {
	return m.pages[id]
}

// ErrorPageID returns the id of the _error page, or "".
func (m *Manifest) ErrorPageID() string {
	return m.errorPageID
}

// DefaultFiles returns the _default files.
func (m *Manifest) DefaultFiles() []*File {
	return m.defaults
}

// Page is a routable unit composed of its own files and the _default files
// above it. Files are ordered most specific first: the page's .page.server
// and .page files, then _default files from the closest directory outward.
type Page struct {
	ID    string
	own   []*File
	files []*File
}

// Files returns all files of the page, most specific first.
func (p *Page) Files() []*File {
	return p.files
}

// OwnFiles returns the files of the page itself, without _default files.
func (p *Page) OwnFiles() []*File {
	return p.own
}

// IsError reports whether this is the _error page.
func (p *Page) IsError() bool {
	return path.Base(p.ID) == "_error"
}

// Load loads every file of the page.
func (p *Page) Load(ctx context.Context) error {
	for _, f := range p.files {
		if err := f.Load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// HasHook reports whether a server-side file of the page declares name.
func (p *Page) HasHook(name string) bool {
	for _, f := range p.files {
		if isServerSide(f) && f.HasExport(name) {
			return true
		}
	}
	return false
}

// Hook returns the most specific server-side hook called name. Files must be
// loaded.
func (p *Page) Hook(name string) (*HookRef, bool) {
	for _, f := range p.files {
		if !isServerSide(f) {
			continue
		}
		if v, ok := f.Export(name); ok {
			return &HookRef{Name: name, File: f, Value: v}, true
		}
	}
	return nil, false
}

// RouteFile returns the page's own .page.route file, if any.
func (p *Page) RouteFile() *File {
	for _, f := range p.own {
		if f.Type == TypeRoute {
			return f
		}
	}
	return nil
}

// PassToClient returns the union of the passToClient exports of the page's
// loaded files.
func (p *Page) PassToClient() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, f := range p.files {
		v, ok := f.Export(ExportPassToClient)
		if !ok {
			continue
		}
		list, _ := v.([]string)
		for _, k := range list {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Loaded lists the loaded files, for diagnostics.
func (p *Page) Loaded() []string {
	var out []string
	for _, f := range p.files {
		if f.Loaded() {
			out = append(out, f.FilePath)
		}
	}
	return out
}

func isServerSide(f *File) bool {
	return f.Type == TypeServer || f.Type == TypePage
}
