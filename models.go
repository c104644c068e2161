package users

import (
	"time"

	"github.com/goliatone/go-users/query"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	Role          UserRole   `bun:"role,notnull" json:"role"`
	Active        bool       `bun:"active,notnull" json:"active"`
	OrdersCount   int        `bun:"orders_count,scanonly" json:"orders_count"`
	CanEdit       bool       `bun:"-" json:"can_edit"`
	Orders        []*Order   `bun:"rel:has-many,join:id=user_id" json:"orders,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// DefaultSearchColumns implements query.Searchable.
func (User) DefaultSearchColumns() []string {
	return []string{"name", "email"}
}

// QueryRelations implements query.Relational.
func (User) QueryRelations() map[string]query.Relation {
	return map[string]query.Relation{
		"orders": {
			Kind:       query.HasMany,
			Table:      "orders",
			ForeignKey: "user_id",
		},
	}
}

// OrderStatus is the lifecycle state of an order
type OrderStatus = string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCancelled OrderStatus = "cancelled"
)

// Order belongs to a user. Totals are stored in cents.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:ord"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID   `bun:"user_id,notnull,type:uuid" json:"user_id"`
	User          *User       `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Status        OrderStatus `bun:"status,notnull" json:"status"`
	Reference     string      `bun:"reference,notnull" json:"reference"`
	Total         int64       `bun:"total,notnull" json:"total"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

func (Order) DefaultSearchColumns() []string {
	return []string{"reference", "status"}
}

func (Order) QueryRelations() map[string]query.Relation {
	return map[string]query.Relation{
		"user": {
			Kind:       query.BelongsTo,
			Table:      "users",
			ForeignKey: "user_id",
		},
	}
}
