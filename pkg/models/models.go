package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a user wallet as seen by the settlement engine. The engine only
// ever decreases Balance (order acceptance) and only ever increases
// TokenBalance (consolidation).
type Account struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"type:varchar(150);uniqueIndex;not null" validate:"required,min=3,max=150"`
	Email        string    `json:"email" gorm:"type:varchar(254)" validate:"omitempty,email,max=254"`
	Balance      int64     `json:"balance" gorm:"not null;default:0;check:chk_accounts_balance,balance >= 0" validate:"min=0"`
	TokenBalance int64     `json:"token_balance" gorm:"not null;default:0;check:chk_accounts_token_balance,token_balance >= 0" validate:"min=0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the accounts table name
func (Account) TableName() string {
	return "accounts"
}

// Order is an accepted, balance-debited buy order. Immutable after insert;
// removed only by consolidation.
type Order struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID   uint64    `json:"owner_id" gorm:"not null;index:idx_orders_owner"`
	Owner     *Account  `json:"-" gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Price     int64     `json:"price" gorm:"not null;index:idx_orders_price;check:chk_orders_price,price >= 1"`
	Amount    int64     `json:"amount" gorm:"not null;check:chk_orders_amount,amount >= 1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the live orders table name
func (Order) TableName() string {
	return "orders"
}

// ArchiveOrder is settled order history. Append-only.
type ArchiveOrder struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SourceOrderID uint64    `json:"source_order_id" gorm:"not null;index:idx_archive_orders_source"`
	OwnerID       uint64    `json:"owner_id" gorm:"not null;index:idx_archive_orders_owner"`
	Owner         *Account  `json:"-" gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Price         int64     `json:"price" gorm:"not null;check:chk_archive_orders_price,price >= 1"`
	Amount        int64     `json:"amount" gorm:"not null;check:chk_archive_orders_amount,amount >= 1"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ArchivedAt    time.Time `json:"archived_at" gorm:"not null"`
}

// TableName returns the archive table name
func (ArchiveOrder) TableName() string {
	return "archive_orders"
}

// NewArchiveOrder copies a live order into its archive form
func NewArchiveOrder(o Order, archivedAt time.Time) ArchiveOrder {
	return ArchiveOrder{
		SourceOrderID: o.ID,
		OwnerID:       o.OwnerID,
		Price:         o.Price,
		Amount:        o.Amount,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		ArchivedAt:    archivedAt,
	}
}

// OrderRequest is the unchecked, queue-resident form of a buy order.
type OrderRequest struct {
	RequestID  uuid.UUID `json:"request_id"`
	OwnerID    uint64    `json:"owner_id" validate:"required,gt=0"`
	Amount     int64     `json:"amount" validate:"required,gte=1"`
	Price      int64     `json:"price" validate:"required,gte=1"`
	ReceivedAt time.Time `json:"received_at"`
}

// All returns every persisted model, in dependency order
func All() []interface{} {
	return []interface{}{&Account{}, &Order{}, &ArchiveOrder{}}
}
