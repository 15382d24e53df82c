package search

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

// ErrUnavailable is returned by indexers that cannot answer queries.
var ErrUnavailable = errors.New("search index unavailable")

// Indexer keeps an external full-text index of properties in sync.
type Indexer interface {
	IndexProperty(ctx context.Context, p *types.Property) error
	DeleteProperty(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, q Query) (*Result, error)
}

type Query struct {
	Text          string
	Purpose       types.PropertyPurpose
	Types         []types.PropertyType
	PublishedOnly bool
	Sort          types.PropertySort
	Page          int
	PageSize      int
}

type Result struct {
	IDs   []uuid.UUID
	Total int64
}

// NoopIndexer is used when no search backend is configured.
type NoopIndexer struct{}

var _ Indexer = NoopIndexer{}

func (NoopIndexer) IndexProperty(context.Context, *types.Property) error { return nil }

func (NoopIndexer) DeleteProperty(context.Context, uuid.UUID) error { return nil }

func (NoopIndexer) Search(context.Context, Query) (*Result, error) { return nil, ErrUnavailable }
