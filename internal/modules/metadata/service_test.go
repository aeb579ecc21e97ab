package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/config"
)

func newTestService(t *testing.T, gateway *httptest.Server, withCache bool) Service {
	t.Helper()
	cfg := config.IPFS{
		GatewayURL:   gateway.URL + "/ipfs",
		PinURL:       gateway.URL,
		PinJWT:       "test-jwt",
		Timeout:      time.Second,
		CacheTTL:     time.Minute,
		MaxEntrySize: 1024,
	}
	var svc Service
	if withCache {
		cache, err := NewCache(context.Background(), cfg)
		require.NoError(t, err)
		t.Cleanup(func() { cache.Close() })
		svc = NewService(cfg, cache, zap.NewNop(), nil)
	} else {
		svc = NewService(cfg, nil, zap.NewNop(), nil)
	}
	return svc
}

func TestFetchDecodesAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/ipfs/bafyshop", r.URL.Path)
		w.Write([]byte(`{"name":"Shop","description":"Things","image":"bafyimg","extra":1}`))
	}))
	defer srv.Close()

	svc := newTestService(t, srv, true)

	doc, err := svc.Fetch(context.Background(), "ipfs://bafyshop")
	require.NoError(t, err)
	assert.Equal(t, "Shop", doc.Name)
	assert.Equal(t, []string{"bafyimg"}, doc.ImageIDs())

	_, err = svc.Fetch(context.Background(), "bafyshop")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchMissingFieldsAreZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	doc, err := newTestService(t, srv, false).Fetch(context.Background(), "bafy")
	require.NoError(t, err)
	assert.Empty(t, doc.Name)
	assert.Empty(t, doc.ImageIDs())
}

func TestFetchFailuresAreUnavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
		"malformed": func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"name":`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := newTestService(t, srv, false).Fetch(context.Background(), "bafy")
			assert.ErrorIs(t, err, ErrMetadataUnavailable)
		})
	}
}

func TestFetchRequiresCID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestService(t, srv, false).Fetch(context.Background(), "  ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPinJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)
		assert.Equal(t, "Bearer test-jwt", r.Header.Get("Authorization"))

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `{"name":"Mug"}`, string(body["pinataContent"]))
		w.Write([]byte(`{"IpfsHash":"bafynew","PinSize":10}`))
	}))
	defer srv.Close()

	cid, err := newTestService(t, srv, false).Pin(context.Background(), json.RawMessage(`{"name":"Mug"}`))
	require.NoError(t, err)
	assert.Equal(t, "bafynew", cid)
}

func TestPinFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "mug.png", header.Filename)
		assert.Equal(t, "png-bytes", string(content))
		w.Write([]byte(`{"IpfsHash":"bafyfile"}`))
	}))
	defer srv.Close()

	cid, err := newTestService(t, srv, false).PinFile(context.Background(), "mug.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "bafyfile", cid)
}

func TestPinRejectsInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestService(t, srv, false).Pin(context.Background(), json.RawMessage(`{`))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
