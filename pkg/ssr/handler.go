package ssr

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler serves pages rendered by RenderPage. Streamed documents are
// flushed chunk by chunk. Requests RenderPage returns no response for fall
// through to next, or get a 404 when next is nil.
func Handler(rc *RenderContext, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if next != nil {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		resp := RenderPage(r.Context(), rc, PageContextInit{URLOriginal: r.URL.RequestURI()})
		if resp == nil {
			if next != nil {
				next.ServeHTTP(w, r)
				return
			}
			http.NotFound(w, r)
			return
		}
		WriteResponse(w, r, resp)
	})
}

// WriteResponse writes resp to w.
func WriteResponse(w http.ResponseWriter, r *http.Request, resp *HTTPResponse) {
	w.Header().Set("Content-Type", resp.ContentType)
	if resp.Stream == nil {
		w.WriteHeader(resp.StatusCode)
		if r.Method != http.MethodHead {
			w.Write([]byte(resp.Body))
		}
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		resp.Stream.Close()
		return
	}
	// Errors after the header was sent are reported by the stream's
	// OnError callback.
	resp.Stream.WriteTo(w)
}

// NewRouter returns a chi router serving the client build output under
// the assets base and every other GET through Handler.
func NewRouter(rc *RenderContext) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if dir := rc.Config.ClientOutputPath(); dirExists(dir) {
		files := http.FileServer(http.Dir(dir))
		base := strings.TrimSuffix(rc.Config.AssetsBase(), "/")
		if strings.HasPrefix(base, "/") {
			r.Handle(base+"/assets/*", http.StripPrefix(base, files))
		}
	}

	r.Handle("/*", Handler(rc, nil))
	return r
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
