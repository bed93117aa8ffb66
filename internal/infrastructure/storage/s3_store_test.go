package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/config"
)

const noSuchKeyBody = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// fakeS3 answers path-style object requests for a single bucket
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(t *testing.T, bucket string) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{bucket: bucket, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(noSuchKeyBody))
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T, srv *httptest.Server, prefix string) *S3ObjectStore {
	t.Helper()
	store, err := NewS3ObjectStore(context.Background(), &config.StorageConfig{
		Bucket:          "pos-reports",
		Region:          "us-west-2",
		Endpoint:        srv.URL,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
		Prefix:          prefix,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return store
}

func TestNewS3ObjectStore_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3ObjectStore(ctx, nil)
	assert.ErrorContains(t, err, "configuration is required")

	_, err = NewS3ObjectStore(ctx, &config.StorageConfig{})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3ObjectStore(ctx, &config.StorageConfig{Bucket: "b", AccessKeyID: "only-id"})
	assert.ErrorContains(t, err, "must be set together")

	store, err := NewS3ObjectStore(ctx, &config.StorageConfig{
		Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret", Endpoint: "minio.local:9000",
	})
	require.NoError(t, err)
	assert.Equal(t, "b", store.Bucket())
}

func TestS3ObjectStore_PutGetDelete(t *testing.T) {
	fake, srv := newFakeS3(t, "pos-reports")
	store := newTestS3Store(t, srv, "store-7/")
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx))
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Put(ctx, "2024-12-01/summary_daily.json", []byte(`{"date":"2024-12-01"}`), jsonContentType))

	fake.mu.Lock()
	assert.Contains(t, fake.objects, "store-7/2024-12-01/summary_daily.json")
	assert.Equal(t, jsonContentType, fake.types["store-7/2024-12-01/summary_daily.json"])
	fake.mu.Unlock()

	data, err := store.Get(ctx, "2024-12-01/summary_daily.json")
	require.NoError(t, err)
	assert.Equal(t, `{"date":"2024-12-01"}`, string(data))

	require.NoError(t, store.Delete(ctx, "2024-12-01/summary_daily.json"))
	_, err = store.Get(ctx, "2024-12-01/summary_daily.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3ObjectStore_PingUnknownBucket(t *testing.T) {
	_, srv := newFakeS3(t, "other-bucket")
	store := newTestS3Store(t, srv, "")

	assert.ErrorContains(t, store.Ping(context.Background()), "head bucket pos-reports")
}

func TestS3ObjectStore_InvalidKey(t *testing.T) {
	_, srv := newFakeS3(t, "pos-reports")
	store := newTestS3Store(t, srv, "")

	assert.ErrorIs(t, store.Put(context.Background(), "../x", []byte("x"), ""), ErrInvalidKey)
	_, err := store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestS3_ReportSinkAndIndex(t *testing.T) {
	fake, srv := newFakeS3(t, "pos-reports")
	store := newTestS3Store(t, srv, "")
	ctx := context.Background()

	sink := NewObjectReportSink(store, nil)
	daily, category := summariesFor("2024-12-01")
	require.NoError(t, sink.SaveDay(ctx, daily, category))

	fake.mu.Lock()
	assert.Contains(t, fake.objects, "2024-12-01/summary_daily.json")
	assert.Contains(t, fake.objects, "2024-12-01/category_report.json")
	fake.mu.Unlock()

	gotDaily, _, err := sink.FindDay(ctx, "2024-12-01")
	require.NoError(t, err)
	assert.True(t, gotDaily.GrossTotal.Equal(daily.GrossTotal))

	index := NewObjectIndexStore(store, "")
	idx, err := index.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, idx.Len())

	idx.Record("2024-12-01", true)
	require.NoError(t, index.Save(ctx, idx.Document(fixedNow)))

	loaded, err := index.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Contains("2024-12-01"))

	_, _, err = sink.FindDay(ctx, "2024-12-09")
	assert.ErrorIs(t, err, report.ErrReportNotFound)
}
