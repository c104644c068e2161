package users

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-users/query"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Orders interface {
	repository.Repository[*Order]

	NewQuery(tx bun.IDB, criteria ...repository.SelectCriteria) *query.Builder[Order]
	CountByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
}

type orders struct {
	repository.Repository[*Order]
	db *bun.DB
}

func NewOrdersRepository(db *bun.DB) Orders {
	handlers := repository.ModelHandlers[*Order]{
		NewRecord: func() *Order {
			return &Order{}
		},
		GetID: func(record *Order) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Order, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "reference"
		},
	}
	return &orders{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

// OrdersByStatus keeps orders in one of statuses.
func OrdersByStatus(statuses ...OrderStatus) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(statuses) == 0 {
			return q
		}
		return q.Where("?TableAlias.status IN (?)", bun.In(statuses))
	}
}

// OrdersOfUser keeps orders placed by userID.
func OrdersOfUser(userID uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.user_id = ?", userID)
	}
}

func (o *orders) NewQuery(tx bun.IDB, criteria ...repository.SelectCriteria) *query.Builder[Order] {
	var conn bun.IDB = o.db
	if tx != nil {
		conn = tx
	}

	b := query.New[Order](conn)
	for _, c := range criteria {
		if c != nil {
			b.Apply(c)
		}
	}
	return b
}

func (o *orders) CountByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	var conn bun.IDB = o.db
	if tx != nil {
		conn = tx
	}

	n, err := conn.NewSelect().
		Model((*Order)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count orders")
	}
	return n, nil
}
