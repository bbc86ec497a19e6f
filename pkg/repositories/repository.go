package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/cbodonnell/pyramid/pkg/repositories/models"
)

// DefaultListLimit bounds ListRuns when the caller asks for no limit.
const DefaultListLimit = 50

type Repository interface {
	Close(ctx context.Context) error
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, roomID string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
}

// NewRepository picks the implementation from the scheme of databaseURL:
// sqlite://<path> or postgres(ql)://...
func NewRepository(ctx context.Context, databaseURL string, migrations string) (Repository, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return NewSQLiteRepository(ctx, strings.TrimPrefix(databaseURL, "sqlite://"), migrations)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgresRepository(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database url: %s", databaseURL)
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
