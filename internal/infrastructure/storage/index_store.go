package storage

import (
	"context"
	"errors"

	"github.com/posreports/backend/internal/domain/report"
)

// DefaultIndexKey is the object key of the report index
const DefaultIndexKey = "report_index.json"

// ObjectIndexStore keeps the report index document as a single object
type ObjectIndexStore struct {
	store ObjectStore
	key   string
}

var _ report.IndexStore = (*ObjectIndexStore)(nil)

// NewObjectIndexStore creates an index store writing key in store
func NewObjectIndexStore(store ObjectStore, key string) *ObjectIndexStore {
	if key == "" {
		key = DefaultIndexKey
	}
	return &ObjectIndexStore{store: store, key: key}
}

// Load returns the stored index. A missing or corrupt document is an empty index.
func (s *ObjectIndexStore) Load(ctx context.Context) (*report.Index, error) {
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, ErrObjectNotFound) {
		return report.NewIndex(), nil
	}
	if err != nil {
		return nil, err
	}
	return report.DecodeIndex(data), nil
}

// Save replaces the stored index document
func (s *ObjectIndexStore) Save(ctx context.Context, doc report.IndexDocument) error {
	data, err := report.EncodeIndexDocument(doc)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, s.key, append(data, '\n'), jsonContentType)
}
