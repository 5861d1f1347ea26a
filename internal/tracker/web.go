package tracker

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/internal/config"
	"github.com/LeoCommon/tracker/pkg/interval"
	"github.com/LeoCommon/tracker/pkg/log"
	"github.com/LeoCommon/tracker/pkg/ota"
	"github.com/LeoCommon/tracker/pkg/textutil"
)

const (
	updatePath = "/update"
	fetchPath  = "/update/fetch"
)

// logRequests reports every request through the debug helpers, marked as
// web server output
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Dbg("web: "+r.Method+" "+r.URL.Path, log.FromWebServer())
		next.ServeHTTP(w, r)
	})
}

func (a *App) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("GET /debug", a.handleDebug)
	mux.HandleFunc("GET /interval", a.handleIntervalConvert)
	mux.HandleFunc("POST /interval", a.handleIntervalSet)
	return logRequests(mux)
}

func (a *App) otaHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(updatePath, a.handleUpload)
	mux.HandleFunc("POST "+fetchPath, a.handleFetch)
	return logRequests(mux)
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = io.WriteString(w, a.collectStatus().XML())
}

// handleDebug serves the kept debug lines, one escaped line per row
func (a *App) handleDebug(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	var b strings.Builder
	for _, line := range a.Debug.Lines() {
		b.WriteString(textutil.ToURL(line))
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(w, b.String())
}

// handleIntervalConvert converts ?secs= to text and ?text= to seconds
func (a *App) handleIntervalConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	switch {
	case q.Has("secs"):
		secs, err := strconv.ParseInt(q.Get("secs"), 10, 64)
		if err != nil {
			http.Error(w, "bad secs: "+err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, interval.Format(secs)+"\n")

	case q.Has("text"):
		secs, err := interval.Scan(q.Get("text"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, strconv.FormatInt(secs, 10)+"\n")

	default:
		http.Error(w, "either secs or text is required", http.StatusBadRequest)
	}
}

// handleIntervalSet changes and persists the status report interval
func (a *App) handleIntervalSet(w http.ResponseWriter, r *http.Request) {
	var iv interval.Interval
	if err := iv.UnmarshalText([]byte(r.FormValue("interval"))); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if iv <= 0 {
		http.Error(w, "interval must be positive", http.StatusBadRequest)
		return
	}

	a.Conf.Status().Set(func(c *config.StatusConfig) {
		c.Interval = iv
	})

	if err := a.Conf.Status().Save(); err != nil {
		log.Error("could not save the configuration", zap.Error(err))
		http.Error(w, "interval changed but not saved", http.StatusInternalServerError)
		return
	}

	log.Dbg("status interval set to " + iv.String())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, iv.String()+"\n")
}

// statusRecorder remembers the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
	a.Updater.ServeHTTP(rec, r)

	if r.Method == http.MethodPut && rec.code == http.StatusOK {
		a.requestReboot()
	}
}

func (a *App) handleFetch(w http.ResponseWriter, r *http.Request) {
	url := r.FormValue("url")
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	want, err := ota.ParseCRC(r.FormValue("crc"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = a.Updater.Fetch(r.Context(), url, want)
	ota.WriteResult(w, err)

	if err == nil {
		a.requestReboot()
	}
}

// startServers listens on the status and the update address
func (a *App) startServers() error {
	otaAddr := net.JoinHostPort("", strconv.Itoa(a.Updater.Port()))

	servers := []*http.Server{
		{Addr: a.Conf.Status().C().Listen, Handler: a.statusHandler()},
		{Addr: otaAddr, Handler: a.otaHandler()},
	}

	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			a.stopServers()
			return err
		}

		log.Info("web server listening", zap.String("addr", ln.Addr().String()))
		a.servers = append(a.servers, srv)

		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("web server failed", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}(srv, ln)
	}

	return nil
}

func (a *App) stopServers() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range a.servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("web server shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	a.servers = nil
}
