package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// base carries what every repository needs: the pool and the per-query
// timeout.
type base struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (b base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// now is truncated to the precision Postgres stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
