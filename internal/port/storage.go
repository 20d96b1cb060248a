package port

import (
	"context"
	"io"

	"github.com/bnema/squash/internal/domain"
)

type SourceOpener interface {
	Open(ref string) (io.ReadCloser, error)
}

type OutputStore interface {
	Save(ctx context.Context, name string, r io.Reader) (ref string, size int64, err error)
	Remove(ref string) error
}

type HistoryStore interface {
	Record(ctx context.Context, entry *domain.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	Close() error
}
