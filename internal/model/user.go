package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered customer.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FullName  string    `json:"fullName" db:"full_name"`
	Email     string    `json:"email" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// AddressType classifies an address.
type AddressType string

const (
	AddressTypeHome  AddressType = "home"
	AddressTypeWork  AddressType = "work"
	AddressTypeOther AddressType = "other"
)

// Address is a shipping or pickup address.
type Address struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	UserID        *uuid.UUID  `json:"userId,omitempty" db:"user_id"`
	RecipientName string      `json:"recipientName" db:"recipient_name"`
	Phone         string      `json:"phone" db:"phone"`
	Line1         string      `json:"line1" db:"line1"`
	City          string      `json:"city" db:"city"`
	AddressType   AddressType `json:"addressType" db:"address_type"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
}
