// Package assets resolves the client assets a page depends on and injects
// the corresponding tags into rendered HTML.
//
// The client build writes a manifest.json next to the bundled files:
//
//	{
//	  "usesClientRouter": false,
//	  "files": {
//	    "pages/index.client.js": "assets/index.a1b2c3d4.js",
//	    "pages/index.css": "assets/index.e5f6g7h8.css"
//	  },
//	  "pages": {
//	    "/pages/index": {
//	      "entry": "pages/index.client.js",
//	      "imports": ["shared/chunk.js"],
//	      "css": ["pages/index.css"],
//	      "assets": ["fonts/inter.woff2"]
//	    }
//	  }
//	}
//
// "files" maps source names to fingerprinted output names; "pages" lists the
// assets of every page by page id. A page without an entry is HTML-only and
// ships no page context to the client.
//
//	manifest, _ := assets.Load("dist/client/manifest.json")
//	resolver := assets.NewResolver(manifest, "/assets/")
//	pageAssets := assets.ResolvePageAssets(manifest, resolver, "/pages/index")
package assets

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/vango-dev/ssr/internal/errors"
)

// PageEntry lists the client assets of one page.
type PageEntry struct {
	// Entry is the client entry script. Empty for HTML-only pages.
	Entry string `json:"entry,omitempty"`

	// Imports are script chunks the entry depends on.
	Imports []string `json:"imports,omitempty"`

	// CSS are the stylesheets of the page.
	CSS []string `json:"css,omitempty"`

	// Assets are other static dependencies (fonts, images).
	Assets []string `json:"assets,omitempty"`
}

// Manifest holds the client build manifest.
// It is safe for concurrent use.
type Manifest struct {
	// UsesClientRouter is set when the client navigates between pages
	// without full reloads, which requires per-page .pageContext.json files.
	UsesClientRouter bool

	files map[string]string
	pages map[string]PageEntry
	mu    sync.RWMutex
}

type manifestJSON struct {
	UsesClientRouter bool                 `json:"usesClientRouter"`
	Files            map[string]string    `json:"files"`
	Pages            map[string]PageEntry `json:"pages"`
}

// NewManifest creates an empty manifest.
// Use Load() to create a manifest from a JSON file.
func NewManifest() *Manifest {
	return &Manifest{
		files: make(map[string]string),
		pages: make(map[string]PageEntry),
	}
}

// Load reads a manifest.json file and returns a Manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E132").WithSource(path).Wrap(err)
	}

	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.New("E132").WithSource(path).Wrap(err)
	}

	m := NewManifest()
	m.UsesClientRouter = raw.UsesClientRouter
	for k, v := range raw.Files {
		m.files[k] = v
	}
	for k, v := range raw.Pages {
		m.pages[k] = v
	}
	return m, nil
}

// Resolve returns the fingerprinted path for the given source path.
// If not found, returns the original path unchanged.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resolved, ok := m.files[source]; ok {
		return resolved
	}
	return source
}

// Has returns true if the manifest contains the given source path.
func (m *Manifest) Has(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[source]
	return ok
}

// Set adds or updates a fingerprint entry.
func (m *Manifest) Set(source, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[source] = resolved
}

// SetPage adds or replaces the assets of a page.
func (m *Manifest) SetPage(pageID string, entry PageEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages[pageID] = entry
}

// Page returns the assets of a page.
func (m *Manifest) Page(pageID string) (PageEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.pages[pageID]
	return e, ok
}

// Hydratable reports whether the page ships a client entry.
func (m *Manifest) Hydratable(pageID string) bool {
	if m == nil {
		return false
	}
	e, ok := m.Page(pageID)
	return ok && e.Entry != ""
}

// PageIDs returns the ids of all pages in the manifest, sorted.
func (m *Manifest) PageIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.pages))
	for id := range m.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of fingerprint entries in the manifest.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.files)
}

// All returns a copy of all fingerprint entries.
func (m *Manifest) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.files))
	for k, v := range m.files {
		result[k] = v
	}
	return result
}
