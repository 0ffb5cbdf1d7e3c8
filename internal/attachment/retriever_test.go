package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:test-token"

type fakeBotAPI struct {
	getFileCalls  atomic.Int32
	downloadCalls atomic.Int32
	files         map[string][]byte
	getFileStatus int
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/bot"+testToken+"/getFile":
		f.getFileCalls.Add(1)
		if f.getFileStatus != 0 {
			w.WriteHeader(f.getFileStatus)
			fmt.Fprint(w, `{"ok":false,"description":"Bad Request: invalid file_id"}`)
			return
		}
		id := r.URL.Query().Get("file_id")
		if _, ok := f.files[id]; !ok {
			fmt.Fprint(w, `{"ok":false,"description":"Bad Request: file not found"}`)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"result":{"file_id":%q,"file_path":"documents/%s.bin"}}`, id, id)
	case strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/documents/"):
		f.downloadCalls.Add(1)
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/file/bot"+testToken+"/documents/"), ".bin")
		data, ok := f.files[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func newRetriever(t *testing.T, api *fakeBotAPI, maxBytes int64) *Retriever {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(Options{APIURL: srv.URL + "/", Token: testToken, HTTPClient: srv.Client(), MaxBytes: maxBytes})
}

func TestFetchResolvesThenDownloads(t *testing.T) {
	api := &fakeBotAPI{files: map[string][]byte{"AgACphoto": []byte("\xff\xd8\xff\xe0jpeg")}}
	r := newRetriever(t, api, 0)

	data, err := r.Fetch(context.Background(), "AgACphoto")
	require.NoError(t, err)
	assert.Equal(t, []byte("\xff\xd8\xff\xe0jpeg"), data)
	assert.Equal(t, int32(1), api.getFileCalls.Load())
	assert.Equal(t, int32(1), api.downloadCalls.Load())
}

func TestFetchDoesNotCache(t *testing.T) {
	api := &fakeBotAPI{files: map[string][]byte{"BQACpdf": []byte("%PDF-1.7")}}
	r := newRetriever(t, api, 0)

	for i := 0; i < 2; i++ {
		_, err := r.Fetch(context.Background(), "BQACpdf")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), api.getFileCalls.Load())
	assert.Equal(t, int32(2), api.downloadCalls.Load())
}

func TestFetchFailures(t *testing.T) {
	api := &fakeBotAPI{files: map[string][]byte{"big": make([]byte, 64)}}
	r := newRetriever(t, api, 16)

	_, err := r.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")

	_, err = r.Fetch(context.Background(), "big")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = r.Fetch(context.Background(), "  ")
	assert.Error(t, err)
	assert.Equal(t, int32(2), api.getFileCalls.Load())
}

func TestFetchHTTPErrorIsNotRetried(t *testing.T) {
	api := &fakeBotAPI{getFileStatus: http.StatusBadRequest}
	r := newRetriever(t, api, 0)

	_, err := r.Fetch(context.Background(), "AgACphoto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 400")
	assert.Equal(t, int32(1), api.getFileCalls.Load())
}

func TestFetchErrorsHideToken(t *testing.T) {
	r := New(Options{APIURL: "http://127.0.0.1:1", Token: testToken})
	_, err := r.Fetch(context.Background(), "AgACphoto")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testToken)
}

func TestEncode(t *testing.T) {
	raw := []byte{0x00, 0xff, 0x10, 'P', 'D', 'F'}
	decoded, err := base64.StdEncoding.DecodeString(Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}
