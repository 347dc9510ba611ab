package datastore

import (
	"context"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
)

// CreateTransactionalSession implements [domain.StorageAdapter]. The
// returned session already has a transaction started. Pass it to writes with
// [domain.WithSession].
func (d *Datastore) CreateTransactionalSession(ctx context.Context) (domain.Session, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	s, err := client.StartSession(ctx)
	if err != nil {
		return nil, d.handleError(ctx, err)
	}
	if err := s.StartTransaction(ctx); err != nil {
		s.EndSession(ctx)
		return nil, d.handleError(ctx, err)
	}
	d.logger.Debug("transaction started", "session", s.ID())
	return s, nil
}

// CommitTransactionalSession implements [domain.StorageAdapter]. The session
// ends whether or not the commit succeeds.
func (d *Datastore) CommitTransactionalSession(ctx context.Context, s domain.Session) error {
	defer s.EndSession(ctx)
	return d.handleError(ctx, s.CommitTransaction(ctx))
}

// AbortTransactionalSession implements [domain.StorageAdapter]. The session
// ends whether or not the abort succeeds.
func (d *Datastore) AbortTransactionalSession(ctx context.Context, s domain.Session) error {
	defer s.EndSession(ctx)
	return d.handleError(ctx, s.AbortTransaction(ctx))
}
