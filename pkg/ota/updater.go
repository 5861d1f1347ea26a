package ota

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/crc"
	"github.com/LeoCommon/tracker/pkg/log"
)

const (
	// BundleCRCHeader optionally carries the hex CRC-32 of an uploaded bundle
	BundleCRCHeader = "X-Bundle-CRC32"

	FetchTimeout     = 10 * time.Minute
	progressInterval = 500 * time.Millisecond
	bundlePattern    = "update-*.raucb"
)

// Installer installs a received bundle. started must be called once the
// installation was accepted, progress reports the install percentage.
type Installer interface {
	Install(ctx context.Context, bundle string, started func(), progress func(percent int32, message string)) error
}

type Config struct {
	// BundleDir receives the bundles, the system temp dir if empty
	BundleDir string
	// Password protects uploads with HTTP basic auth if set
	Password string
}

// ResponseError is a non 2xx answer of the bundle server
type ResponseError struct {
	Status string
	Code   int
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("code: %d status: %s", e.Code, e.Status)
}

// CRCMismatchError is returned when the received bundle does not match the announced checksum
type CRCMismatchError struct {
	Want, Got uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("bundle crc mismatch: want %08x got %08x", e.Want, e.Got)
}

// Updater receives bundles by upload (ServeHTTP) or download (Fetch) and
// installs them. It implements Platform, one update runs at a time.
type Updater struct {
	installer Installer
	client    *req.Client
	bundleDir string
	password  string

	mu         sync.Mutex
	busy       bool
	hostname   string
	port       int
	onStart    func()
	onEnd      func()
	onProgress func(Progress)
	onError    func(*Error)
}

func NewUpdater(installer Installer, cfg Config) *Updater {
	return &Updater{
		installer: installer,
		client:    req.C().SetTimeout(FetchTimeout).SetUserAgent("snork-tracker-ota"),
		bundleDir: cfg.BundleDir,
		password:  cfg.Password,
		hostname:  DefaultHostname,
		port:      DefaultPort,
	}
}

// GetClient returns the download client, tests swap its transport
func (u *Updater) GetClient() *req.Client {
	return u.client
}

func (u *Updater) SetHostname(hostname string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hostname = hostname
}

func (u *Updater) SetPort(port int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.port = port
}

func (u *Updater) Hostname() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hostname
}

func (u *Updater) Port() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.port
}

// PasswordProtected reports whether uploads need credentials
func (u *Updater) PasswordProtected() bool {
	return u.password != ""
}

func (u *Updater) OnStart(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onStart = fn
}

func (u *Updater) OnEnd(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onEnd = fn
}

func (u *Updater) OnProgress(fn func(Progress)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onProgress = fn
}

func (u *Updater) OnError(fn func(*Error)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onError = fn
}

// Busy reports whether an update session is running
func (u *Updater) Busy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.busy
}

func (u *Updater) acquire() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.busy {
		return false
	}
	u.busy = true
	return true
}

func (u *Updater) release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.busy = false
}

func (u *Updater) start() {
	u.mu.Lock()
	fn := u.onStart
	u.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (u *Updater) end() {
	u.mu.Lock()
	fn := u.onEnd
	u.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (u *Updater) progress(p Progress) {
	u.mu.Lock()
	fn := u.onProgress
	u.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// fail hands err to the error hook and returns it
func (u *Updater) fail(err *Error) error {
	u.mu.Lock()
	fn := u.onError
	u.mu.Unlock()
	if fn != nil {
		fn(err)
	}
	return err
}

// progressWriter counts received bytes and reports every percent change
type progressWriter struct {
	done, total int64
	last        int
	report      func(Progress)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))
	w.update(w.done, w.total)
	return len(p), nil
}

func (w *progressWriter) update(done, total int64) {
	pr := Progress{Phase: PhaseReceive, Done: done, Total: total}
	if pc := pr.Percent(); pc != w.last {
		w.last = pc
		w.report(pr)
	}
}

type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}

type receiveFunc func(ctx context.Context, dst io.Writer, pw *progressWriter) error

// run executes one update session: receive fills the bundle, which is
// verified against want and installed afterwards
func (u *Updater) run(ctx context.Context, source string, want *uint32, receive receiveFunc) error {
	if !u.acquire() {
		return ErrBusy
	}
	defer u.release()

	session := zap.String("session", uuid.NewString())
	log.Info("update session started", session, zap.String("source", source))
	u.start()

	if u.bundleDir != "" {
		if err := os.MkdirAll(u.bundleDir, 0o755); err != nil {
			return u.fail(NewError(BeginError, err))
		}
	}

	f, err := os.CreateTemp(u.bundleDir, bundlePattern)
	if err != nil {
		return u.fail(NewError(BeginError, err))
	}
	bundle := f.Name()
	defer os.Remove(bundle)

	sum := crc.New()
	pw := &progressWriter{last: -1, report: u.progress}
	err = receive(ctx, io.MultiWriter(f, sum), pw)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}

	if err != nil {
		var oe *Error
		if !errors.As(err, &oe) {
			oe = NewError(ReceiveError, err)
		}
		log.Error("receiving bundle failed", session, zap.Error(err))
		return u.fail(oe)
	}

	if want != nil && sum.Sum32() != *want {
		return u.fail(NewError(ReceiveError, &CRCMismatchError{Want: *want, Got: sum.Sum32()}))
	}

	log.Info("bundle received", session, zap.Int64("bytes", pw.done), zap.String("crc", fmt.Sprintf("%08x", sum.Sum32())))

	if u.installer == nil {
		return u.fail(NewError(BeginError, errors.New("no installer available")))
	}

	// The installation keeps running on the device when the client goes away
	installCtx := context.WithoutCancel(ctx)

	started := false
	err = u.installer.Install(installCtx, bundle, func() { started = true }, func(percent int32, message string) {
		log.Debug("install progress", session, zap.Int32("percent", percent), zap.String("message", message))
		u.progress(Progress{Phase: PhaseInstall, Done: int64(percent), Total: 100})
	})
	if err != nil {
		kind := BeginError
		if started {
			kind = EndError
		}
		log.Error("installing bundle failed", session, zap.Bool("started", started), zap.Error(err))
		return u.fail(NewError(kind, err))
	}

	log.Info("update session finished", session)
	u.end()
	return nil
}

// Receive installs the bundle read from body, size may be -1 if unknown
func (u *Updater) Receive(ctx context.Context, body io.Reader, size int64, want *uint32) error {
	return u.run(ctx, "upload", want, func(ctx context.Context, dst io.Writer, pw *progressWriter) error {
		pw.total = size
		n, err := io.Copy(io.MultiWriter(dst, pw), body)
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if size >= 0 && n != size {
			return fmt.Errorf("short bundle: got %d of %d bytes", n, size)
		}
		return nil
	})
}

// Fetch downloads the bundle from url and installs it
func (u *Updater) Fetch(ctx context.Context, url string, want *uint32) error {
	return u.run(ctx, url, want, func(ctx context.Context, dst io.Writer, pw *progressWriter) error {
		var received byteCounter
		resp, err := u.client.R().
			SetContext(ctx).
			SetOutput(io.MultiWriter(dst, &received)).
			SetDownloadCallbackWithInterval(func(info req.DownloadInfo) {
				if info.Response != nil && info.Response.Response != nil {
					pw.update(info.DownloadedSize, info.Response.ContentLength)
				}
			}, progressInterval).
			Get(url)

		if err != nil {
			if resp != nil && resp.Response != nil {
				return NewError(ReceiveError, err)
			}
			return NewError(ConnectError, err)
		}

		if !resp.IsSuccessState() {
			return NewError(ReceiveError, &ResponseError{Code: resp.StatusCode, Status: resp.Status})
		}

		pw.done = int64(received)
		return nil
	})
}

func (u *Updater) authorized(r *http.Request) bool {
	if u.password == "" {
		return true
	}

	_, password, ok := r.BasicAuth()
	return ok && subtle.ConstantTimeCompare([]byte(password), []byte(u.password)) == 1
}

// ServeHTTP accepts bundle uploads with PUT
func (u *Updater) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.Header().Set("Allow", http.MethodPut)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !u.authorized(r) {
		err := u.fail(NewError(AuthError, errors.New("bad credentials from "+r.RemoteAddr)))
		w.Header().Set("WWW-Authenticate", `Basic realm="ota"`)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	want, err := ParseCRC(r.Header.Get(BundleCRCHeader))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = u.Receive(r.Context(), r.Body, r.ContentLength, want)
	WriteResult(w, err)
}

// ParseCRC parses a hex checksum, an empty string yields nil
func ParseCRC(s string) (*uint32, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("bad crc %q: %w", s, err)
	}

	c := uint32(v)
	return &c, nil
}

// StatusCode maps an update result to an HTTP status
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, AuthError):
		return http.StatusUnauthorized
	case errors.Is(err, ConnectError):
		return http.StatusBadGateway
	case errors.Is(err, ReceiveError):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// WriteResult writes the outcome of an update as plain text
func WriteResult(w http.ResponseWriter, err error) {
	if err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK\n")
}
