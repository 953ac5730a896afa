package submission

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core"
)

// Statuses
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusDeclined = "Declined"
	StatusRejected = "Rejected"
)

var Statuses = []string{StatusPending, StatusApproved, StatusDeclined, StatusRejected}

// Submission is a proof-of-earnings report filed by a user for a title.
type Submission struct {
	ID          int             `json:"id"`
	UserID      int             `json:"user_id"`
	TitleID     null.Int        `json:"title_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Notes       string          `json:"notes"`
	SubmittedAt time.Time       `json:"submitted_at"` // UTC
	CreatedAt   time.Time       `json:"created_at"`   // UTC
	UpdatedAt   time.Time       `json:"updated_at"`   // UTC
}

type NewSubmission struct {
	UserID  int             `json:"user_id" validate:"required,min=1"`
	TitleID int             `json:"title_id" validate:"omitempty,min=1"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Notes   string          `json:"notes"`
}

func (ns *NewSubmission) Validate() error {
	ns.Notes = core.CleanString(ns.Notes)
	return core.Validate.Struct(ns)
}

type UpdateSubmission struct {
	Status string          `json:"status" validate:"omitempty,oneof=Pending Approved Declined Rejected"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

func (us *UpdateSubmission) Validate() error {
	us.Notes = core.CleanString(us.Notes)
	return core.Validate.Struct(us)
}

type QueryFilter struct {
	UserID   int       `query:"user_id"`
	Statuses []string  `query:"status"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.UserID == 0 && qf.Statuses == nil && qf.From.IsZero() && qf.To.IsZero()
}
