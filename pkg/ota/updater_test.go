package ota

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/LeoCommon/tracker/pkg/crc"
)

const bundleURL = "http://updates.local/tracker.raucb"

type fakeInstaller struct {
	calls    int
	content  string
	failWith error
	// fail after the installation was accepted
	late bool
}

func (f *fakeInstaller) Install(_ context.Context, bundle string, started func(), progress func(int32, string)) error {
	f.calls++

	data, err := os.ReadFile(bundle)
	if err != nil {
		return err
	}
	f.content = string(data)

	if f.failWith != nil && !f.late {
		return f.failWith
	}

	started()
	progress(50, "Installing")

	if f.failWith != nil {
		return f.failWith
	}

	progress(100, "Done")
	return nil
}

type hookRecorder struct {
	starts, ends int
	progress     []Progress
	errs         []*Error
}

func newTestUpdater(t *testing.T, inst Installer, password string) (*Updater, *hookRecorder) {
	t.Helper()

	u := NewUpdater(inst, Config{BundleDir: t.TempDir(), Password: password})
	rec := &hookRecorder{}
	u.OnStart(func() { rec.starts++ })
	u.OnEnd(func() { rec.ends++ })
	u.OnProgress(func(p Progress) { rec.progress = append(rec.progress, p) })
	u.OnError(func(e *Error) { rec.errs = append(rec.errs, e) })
	return u, rec
}

func upload(u *Updater, body string, header map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPut, "/update", strings.NewReader(body))
	for k, v := range header {
		r.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	u.ServeHTTP(w, r)
	return w
}

func crcHeader(s string) map[string]string {
	return map[string]string{BundleCRCHeader: fmt.Sprintf("%08x", crc.Checksum([]byte(s)))}
}

func TestUploadInstalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	inst := &fakeInstaller{}
	u, rec := newTestUpdater(t, inst, "")

	w := upload(u, "bundle-payload", crcHeader("bundle-payload"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bundle-payload", inst.content)
	assert.Equal(t, 1, rec.starts)
	assert.Equal(t, 1, rec.ends)
	assert.Empty(t, rec.errs)

	require.NotEmpty(t, rec.progress)
	assert.Equal(t, Progress{Phase: PhaseReceive, Done: 14, Total: 14}, rec.progress[0])
	assert.Equal(t, Progress{Phase: PhaseInstall, Done: 100, Total: 100}, rec.progress[len(rec.progress)-1])
	assert.False(t, u.Busy())

	// the bundle is removed after the session
	entries, err := os.ReadDir(u.bundleDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadCRCMismatch(t *testing.T) {
	inst := &fakeInstaller{}
	u, rec := newTestUpdater(t, inst, "")

	w := upload(u, "bundle-payload", crcHeader("other-payload"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, inst.calls)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, ReceiveError, rec.errs[0].Kind)

	var mismatch *CRCMismatchError
	assert.True(t, errors.As(rec.errs[0], &mismatch))
}

func TestUploadBadCRCHeader(t *testing.T) {
	u, rec := newTestUpdater(t, &fakeInstaller{}, "")

	w := upload(u, "x", map[string]string{BundleCRCHeader: "xyz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, rec.starts)
}

func TestUploadAuth(t *testing.T) {
	inst := &fakeInstaller{}
	u, rec := newTestUpdater(t, inst, "secret")
	assert.True(t, u.PasswordProtected())

	w := upload(u, "bundle", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	require.Len(t, rec.errs, 1)
	assert.Equal(t, AuthError, rec.errs[0].Kind)
	assert.Equal(t, 0, rec.starts)

	r := httptest.NewRequest(http.MethodPut, "/update", strings.NewReader("bundle"))
	r.SetBasicAuth("admin", "secret")
	rw := httptest.NewRecorder()
	u.ServeHTTP(rw, r)
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, 1, inst.calls)
}

func TestUploadMethod(t *testing.T) {
	u, _ := newTestUpdater(t, &fakeInstaller{}, "")

	w := httptest.NewRecorder()
	u.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/update", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestUploadBusy(t *testing.T) {
	inst := &fakeInstaller{}
	u, rec := newTestUpdater(t, inst, "")

	require.True(t, u.acquire())
	w := upload(u, "bundle", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, inst.calls)
	assert.Equal(t, 0, rec.starts)

	u.release()
	assert.Equal(t, http.StatusOK, upload(u, "bundle", nil).Code)
}

func TestInstallFailures(t *testing.T) {
	tests := []struct {
		name string
		late bool
		kind ErrorKind
	}{
		{"rejected", false, BeginError},
		{"failed", true, EndError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := &fakeInstaller{failWith: errors.New("rauc failed"), late: tt.late}
			u, rec := newTestUpdater(t, inst, "")

			err := u.Receive(context.Background(), strings.NewReader("bundle"), 6, nil)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
			require.Len(t, rec.errs, 1)
			assert.Equal(t, tt.kind, rec.errs[0].Kind)
			assert.Equal(t, 0, rec.ends)
		})
	}
}

type blockingInstaller struct {
	started chan struct{}
	finish  chan struct{}
}

func (b *blockingInstaller) Install(ctx context.Context, _ string, started func(), _ func(int32, string)) error {
	started()
	close(b.started)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.finish:
		return nil
	}
}

func TestInstallOutlivesClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	inst := &blockingInstaller{started: make(chan struct{}), finish: make(chan struct{})}
	u, rec := newTestUpdater(t, inst, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- u.Receive(ctx, strings.NewReader("bundle"), 6, nil)
	}()

	<-inst.started
	// the uploader disconnects while the bundle is being installed
	cancel()
	close(inst.finish)

	assert.NoError(t, <-done)
	assert.Equal(t, 1, rec.ends)
	assert.Empty(t, rec.errs)
}

func TestNoInstaller(t *testing.T) {
	u, _ := newTestUpdater(t, nil, "")

	err := u.Receive(context.Background(), strings.NewReader("bundle"), -1, nil)
	assert.ErrorIs(t, err, BeginError)
}

func TestShortUpload(t *testing.T) {
	inst := &fakeInstaller{}
	u, _ := newTestUpdater(t, inst, "")

	err := u.Receive(context.Background(), strings.NewReader("bun"), 6, nil)
	assert.ErrorIs(t, err, ReceiveError)
	assert.Equal(t, 0, inst.calls)
}

func TestFetch(t *testing.T) {
	inst := &fakeInstaller{}
	u, rec := newTestUpdater(t, inst, "")

	httpmock.ActivateNonDefault(u.GetClient().GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, bundleURL, httpmock.NewStringResponder(200, "fetched-bundle"))

	want := crc.Checksum([]byte("fetched-bundle"))
	err := u.Fetch(context.Background(), bundleURL, &want)
	assert.NoError(t, err)
	assert.Equal(t, "fetched-bundle", inst.content)
	assert.Equal(t, 1, rec.ends)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchErrors(t *testing.T) {
	inst := &fakeInstaller{}
	u, rec := newTestUpdater(t, inst, "")

	httpmock.ActivateNonDefault(u.GetClient().GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, bundleURL, httpmock.NewStringResponder(404, "not found"))
	httpmock.RegisterResponder(http.MethodGet, "http://offline.local/tracker.raucb", httpmock.NewErrorResponder(errors.New("connection refused")))

	err := u.Fetch(context.Background(), bundleURL, nil)
	assert.ErrorIs(t, err, ReceiveError)
	var re *ResponseError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 404, re.Code)

	err = u.Fetch(context.Background(), "http://offline.local/tracker.raucb", nil)
	assert.ErrorIs(t, err, ConnectError)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))

	assert.Equal(t, 0, inst.calls)
	assert.Len(t, rec.errs, 2)
}

func TestParseCRC(t *testing.T) {
	c, err := ParseCRC("")
	assert.NoError(t, err)
	assert.Nil(t, c)

	c, err = ParseCRC("0xCBF43926")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCBF43926), *c)

	_, err = ParseCRC("1ffffffff")
	assert.Error(t, err)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusConflict, StatusCode(ErrBusy))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(NewError(AuthError, nil)))
	assert.Equal(t, http.StatusBadRequest, StatusCode(NewError(ReceiveError, nil)))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("x")))
}
