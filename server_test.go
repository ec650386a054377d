package rangeserve_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menmos/rangeserve"
	"github.com/menmos/rangeserve/config"
	"github.com/menmos/rangeserve/payload"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestServer serves a temporary root holding clip.mp4 (1000 bytes) and sample.mp4 (30000 bytes).
func newTestServer(t *testing.T, opts rangeserve.Options) (*httptest.Server, map[string][]byte) {
	t.Helper()

	root := t.TempDir()
	files := map[string][]byte{
		"clip.mp4":   testData(1000),
		"sample.mp4": testData(30000),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), data, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(root, "folder.mp4"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(root), "secret.mp4"), []byte("secret"), 0o644))

	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}

	srv := httptest.NewServer(rangeserve.NewServer(root, opts))
	t.Cleanup(srv.Close)
	return srv, files
}

func get(t *testing.T, url string, rangeHeaders ...string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for _, value := range rangeHeaders {
		req.Header.Add("Range", value)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestServer_Index(t *testing.T) {
	srv, _ := newTestServer(t, rangeserve.Options{})

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Video Streaming Server", string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestServer_Video(t *testing.T) {
	srv, files := newTestServer(t, rangeserve.Options{})
	clip := files["clip.mp4"]

	type testCase struct {
		name         string
		path         string
		ranges       []string
		status       int
		contentRange string
		body         []byte
	}

	cases := []testCase{
		{"full", "/video?file=clip.mp4", nil, http.StatusOK, "", clip},
		{"default file", "/video", nil, http.StatusOK, "", files["sample.mp4"]},
		{"path form", "/video/clip.mp4", nil, http.StatusOK, "", clip},
		{"first hundred", "/video?file=clip.mp4", []string{"bytes=0-99"}, http.StatusPartialContent, "bytes 0-99/1000", clip[:100]},
		{"clamped", "/video?file=clip.mp4", []string{"bytes=900-2000"}, http.StatusPartialContent, "bytes 900-999/1000", clip[900:]},
		{"open ended", "/video/clip.mp4", []string{"bytes=250-"}, http.StatusPartialContent, "bytes 250-999/1000", clip[250:]},
		{"past end", "/video?file=clip.mp4", []string{"bytes=1000-2000"}, http.StatusRequestedRangeNotSatisfiable, "bytes */1000", []byte{}},
		{"malformed", "/video?file=clip.mp4", []string{"bytes=abc"}, http.StatusRequestedRangeNotSatisfiable, "bytes */1000", []byte{}},
		{"multi range", "/video?file=clip.mp4", []string{"bytes=0-1,5-6"}, http.StatusRequestedRangeNotSatisfiable, "bytes */1000", []byte{}},
		{"repeated header", "/video?file=clip.mp4", []string{"bytes=0-1", "bytes=5-6"}, http.StatusRequestedRangeNotSatisfiable, "bytes */1000", []byte{}},
	}

	for _, tCase := range cases {
		t.Run(tCase.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+tCase.path, tCase.ranges...)

			assert.Equal(t, tCase.status, resp.StatusCode)
			assert.Equal(t, tCase.contentRange, resp.Header.Get("Content-Range"))
			assert.Equal(t, tCase.body, body)

			switch tCase.status {
			case http.StatusPartialContent:
				assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
				assert.Equal(t, int64(len(tCase.body)), resp.ContentLength)
				assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
			case http.StatusOK:
				assert.Empty(t, resp.Header.Get("Accept-Ranges"))
				assert.Equal(t, int64(len(tCase.body)), resp.ContentLength)
				assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestServer_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, rangeserve.Options{})

	for _, path := range []string{
		"/video?file=missing.mp4",
		"/video?file=../secret.mp4",
		"/video?file=folder.mp4",
		"/video?file=%2Fetc%2Fpasswd",
		"/video/missing.mp4",
	} {
		t.Run(path, func(t *testing.T) {
			resp, body := get(t, srv.URL+path, "bytes=0-10")
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "Video not found\n", string(body))
			assert.Empty(t, resp.Header.Get("Content-Range"))
		})
	}
}

func TestServer_SequentialRangesRebuildFile(t *testing.T) {
	srv, files := newTestServer(t, rangeserve.Options{ChunkSize: 333})
	sample := files["sample.mp4"]

	var rebuilt bytes.Buffer
	step := 1777
	for start := 0; start < len(sample); start += step {
		resp, body := get(t, srv.URL+"/video?file=sample.mp4", fmt.Sprintf("bytes=%d-%d", start, start+step-1))
		require.Equal(t, http.StatusPartialContent, resp.StatusCode)
		rebuilt.Write(body)
	}

	assert.Equal(t, sample, rebuilt.Bytes())
}

func TestServer_ConcurrentOverlappingRanges(t *testing.T) {
	srv, files := newTestServer(t, rangeserve.Options{ChunkSize: 512})
	sample := files["sample.mp4"]

	var group errgroup.Group
	for i := 0; i < 16; i++ {
		start := i * 1500
		group.Go(func() error {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/video?file=sample.mp4", nil)
			if err != nil {
				return err
			}
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if !bytes.Equal(sample[start:], body) {
				return fmt.Errorf("range starting at %d returned wrong bytes", start)
			}
			return nil
		})
	}

	assert.NoError(t, group.Wait())
}

func TestServer_Head(t *testing.T) {
	srv, _ := newTestServer(t, rangeserve.Options{})

	resp, err := http.Head(srv.URL + "/video?file=sample.mp4")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(30000), resp.ContentLength)
}

func TestServer_ProfileHeaders(t *testing.T) {
	srv, _ := newTestServer(t, rangeserve.Options{AllowOrigin: "*", NoStore: true})

	resp, _ := get(t, srv.URL+"/video?file=clip.mp4", "bytes=0-9")
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-store, must-revalidate", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))

	resp, _ = get(t, srv.URL+"/")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Cache-Control"))
}

func TestServer_InfoAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, rangeserve.Options{})

	resp, body := get(t, srv.URL+"/video/info?file=clip.mp4")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info payload.GetMetadataResponse
	require.NoError(t, json.Unmarshal(body, &info))
	require.NotNil(t, info.Metadata)
	assert.Equal(t, payload.NewVideoMeta("clip.mp4", 1000, "video/mp4"), *info.Metadata)

	resp, _ = get(t, srv.URL+"/video/info?file=nope.webm")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"ok"}`, string(body))
}

func TestServer_FromProfile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "intro.webm"), testData(64), 0o644))

	profile := config.DefaultProfile()
	profile.Root = root
	profile.DefaultFile = "intro.webm"

	srv := httptest.NewServer(rangeserve.NewServerFromProfile(profile, quietLogger()))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/video", "bytes=60-")
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "video/webm", resp.Header.Get("Content-Type"))
	assert.Equal(t, testData(64)[60:], body)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "video/mp4", rangeserve.ContentTypeFor("a.MP4"))
	assert.Equal(t, "video/webm", rangeserve.ContentTypeFor("a.webm"))
	assert.Equal(t, "video/ogg", rangeserve.ContentTypeFor("a.ogg"))
	assert.Equal(t, "video/quicktime", rangeserve.ContentTypeFor("dir/a.mov"))
	assert.Equal(t, "application/octet-stream", rangeserve.ContentTypeFor("a.mkv"))
}
