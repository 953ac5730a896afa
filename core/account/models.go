package account

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core"
)

// Account types. Accounts start individual and flip to public on
// their first reassignment; a public account's income is split
// between the first owner and the current holder.
const (
	TypeIndividual = "individual"
	TypePublic     = "public"
)

// Assignment statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Log actions
const (
	ActionAssigned   = "assigned"
	ActionReassigned = "reassigned"
)

// Account is a shared platform credential handed to users.
type Account struct {
	ID                int             `json:"id"`
	Platform          string          `json:"platform"`
	Username          string          `json:"username"`
	Password          string          `json:"-"`
	Email             string          `json:"email"`
	Notes             string          `json:"notes"`
	Type              string          `json:"type"`
	FirstOwnerID      null.Int        `json:"first_owner_id"`
	SplitFirstOwner   decimal.Decimal `json:"split_first_owner"`
	SplitCurrentOwner decimal.Decimal `json:"split_current_owner"`
	SplitsConfigured  bool            `json:"splits_configured"`
	CustomField1      string          `json:"custom_field_1"`
	CustomField2      string          `json:"custom_field_2"`
	CustomField3      string          `json:"custom_field_3"`
	CustomField4      string          `json:"custom_field_4"`
	CustomField5      string          `json:"custom_field_5"`
	CreatedAt         time.Time       `json:"created_at"` // UTC
	UpdatedAt         time.Time       `json:"updated_at"` // UTC
}

// Assignment links an account to its holder. At most one active row
// per account.
type Assignment struct {
	ID         int       `json:"id"`
	AccountID  int       `json:"account_id"`
	UserID     int       `json:"user_id"`
	Status     string    `json:"status"`
	Count      int       `json:"count"`
	AssignedAt time.Time `json:"assigned_at"` // UTC
}

// UserAssignment is an active Assignment joined with its Account for
// dashboard listings.
type UserAssignment struct {
	Assignment
	Account Account `json:"account"`
}

// Log is one assignment history row.
type Log struct {
	ID          int       `json:"id"`
	AccountID   int       `json:"account_id"`
	OldUserID   null.Int  `json:"old_user_id"`
	NewUserID   int       `json:"new_user_id"`
	Action      string    `json:"action"`
	Notes       string    `json:"notes"`
	TypeChanged bool      `json:"type_changed"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// FieldLabels are the admin-configurable display labels of the five
// custom fields.
type FieldLabels struct {
	CustomField1 string `json:"custom_field_1"`
	CustomField2 string `json:"custom_field_2"`
	CustomField3 string `json:"custom_field_3"`
	CustomField4 string `json:"custom_field_4"`
	CustomField5 string `json:"custom_field_5"`
}

type NewAccount struct {
	Platform     string `json:"platform" validate:"required"`
	Username     string `json:"username" validate:"required"`
	Password     string `json:"password"`
	Email        string `json:"email" validate:"omitempty,email"`
	Notes        string `json:"notes"`
	CustomField1 string `json:"custom_field_1"`
	CustomField2 string `json:"custom_field_2"`
	CustomField3 string `json:"custom_field_3"`
	CustomField4 string `json:"custom_field_4"`
	CustomField5 string `json:"custom_field_5"`
}

func (na *NewAccount) Validate() error {
	na.Platform = core.CleanString(na.Platform)
	na.Username = core.CleanString(na.Username)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Notes = core.CleanString(na.Notes)
	return core.Validate.Struct(na)
}

type UpdateAccount struct {
	Platform     string  `json:"platform"`
	Username     string  `json:"username"`
	Password     string  `json:"password"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Notes        string  `json:"notes"`
	CustomField1 *string `json:"custom_field_1"`
	CustomField2 *string `json:"custom_field_2"`
	CustomField3 *string `json:"custom_field_3"`
	CustomField4 *string `json:"custom_field_4"`
	CustomField5 *string `json:"custom_field_5"`
}

func (ua *UpdateAccount) Validate() error {
	ua.Platform = core.CleanString(ua.Platform)
	ua.Username = core.CleanString(ua.Username)
	ua.Email = core.CleanString(ua.Email, true /* lower */)
	ua.Notes = core.CleanString(ua.Notes)
	return core.Validate.Struct(ua)
}

type AssignAccount struct {
	UserID int    `json:"user_id" validate:"required,min=1"`
	Notes  string `json:"notes"`
}

func (aa *AssignAccount) Validate() error {
	aa.Notes = core.CleanString(aa.Notes)
	return core.Validate.Struct(aa)
}

// UpdateSplit sets a public account's ownership split; the two shares
// must add up to exactly 100.
type UpdateSplit struct {
	FirstOwner   decimal.Decimal `json:"first_owner"`
	CurrentOwner decimal.Decimal `json:"current_owner"`
}

func (us UpdateSplit) Validate() error {
	if us.FirstOwner.IsNegative() || us.CurrentOwner.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{
			Field: "first_owner", Error: "shares cannot be negative",
		})
	}
	if !us.FirstOwner.Add(us.CurrentOwner).Equal(decimal.NewFromInt(100)) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "first_owner", Error: "shares must add up to 100",
		})
	}
	return nil
}
