package storage

import (
	"context"
	"errors"

	"poolSnapshot/internal/model"
)

// Storage defines a sink for pool snapshots.
type Storage interface {
	PutSnapshot(ctx context.Context, snap *model.PoolSnapshot) error
}

// Multi writes every snapshot to all sinks and joins their errors.
type Multi []Storage

func (m Multi) PutSnapshot(ctx context.Context, snap *model.PoolSnapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.PutSnapshot(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
