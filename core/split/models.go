package split

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mapato/core"
)

// Ledgers. Every calculation writes to exactly one of the two.
const (
	LedgerPending  = "pending"
	LedgerApproved = "approved"
)

// AssignGlobal is the course-assignment marker that defers recipient
// resolution to the global role assignment for the same role.
const AssignGlobal = "global"

// SplitTable identifies the active percentage configuration of a
// course. At most one per course.
type SplitTable struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CourseID  int       `json:"course_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// SplitPercentage is a (role, percentage) row within a split table.
type SplitPercentage struct {
	ID         int             `json:"id"`
	TableID    int             `json:"table_id"`
	Role       string          `json:"role"`
	Percentage decimal.Decimal `json:"percentage"`
}

// CourseRoleAssignment pins a (course, role) either to a concrete user
// or to the global indirection. Absence of a row means fallback logic
// applies.
type CourseRoleAssignment struct {
	ID       int    `json:"id"`
	CourseID int    `json:"course_id"`
	Role     string `json:"role"`
	UserID   int    `json:"user_id"`
	Global   bool   `json:"global"`
}

// Value renders the assignment the way admin forms exchange it:
// "global" or a user id.
func (a CourseRoleAssignment) Value() string {
	if a.Global {
		return AssignGlobal
	}
	return strconv.Itoa(a.UserID)
}

// GlobalRoleAssignment pins a role to a user independent of course.
type GlobalRoleAssignment struct {
	ID     int    `json:"id"`
	Role   string `json:"role"`
	UserID int    `json:"user_id"`
}

// IncomeEntry is a computed ledger row.
type IncomeEntry struct {
	ID           int             `json:"id"`
	UserID       int             `json:"user_id"`
	Role         string          `json:"role"`
	CourseID     int             `json:"course_id"`
	Income       decimal.Decimal `json:"income"`
	SubmissionID int             `json:"submission_id"`
	RecordedAt   time.Time       `json:"recorded_at"` // UTC
}

// IncomeRow is an IncomeEntry joined with its submission for reporting.
type IncomeRow struct {
	IncomeEntry
	SubmissionStatus string `json:"submission_status"`
	TitleName        string `json:"title_name"`
}

// IncomeSummary totals a user's ledgers.
type IncomeSummary struct {
	Pending  decimal.Decimal `json:"pending"`
	Approved decimal.Decimal `json:"approved"`
}

// MonthlyIncome groups approved income rows by calendar month.
type MonthlyIncome struct {
	Month string          `json:"month"` // "2006-01"
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type NewSplitTable struct {
	Name     string `json:"name" validate:"required"`
	CourseID int    `json:"course_id" validate:"required,min=1"`
}

func (nt *NewSplitTable) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	return core.Validate.Struct(nt)
}

// PercentageInput is one (role, percentage) row submitted by the admin
// form. Zero-percentage rows are dropped on save.
type PercentageInput struct {
	Role       string          `json:"role" validate:"required,rolelabel"`
	Percentage decimal.Decimal `json:"percentage"`
}

type SavePercentages struct {
	Rows []PercentageInput `json:"rows" validate:"required,min=1,dive"`
}

// Admin-form tolerance on the percentage sum. The calculator itself
// never checks it.
var (
	minPctSum = decimal.NewFromFloat(99.9)
	maxPctSum = decimal.NewFromFloat(100.1)
)

func (sp *SavePercentages) Validate() error {
	for i := range sp.Rows {
		sp.Rows[i].Role = core.CleanString(sp.Rows[i].Role, true /* lower */)
	}
	if err := core.Validate.Struct(sp); err != nil {
		return err
	}

	sum := decimal.Zero
	for _, row := range sp.Rows {
		if row.Percentage.IsNegative() {
			return core.NewValidationError(nil, core.FieldError{
				Field: "rows", Error: "percentages cannot be negative",
			})
		}
		sum = sum.Add(row.Percentage)
	}
	if sum.LessThan(minPctSum) || sum.GreaterThan(maxPctSum) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "rows", Error: "percentages must add up to 100",
		})
	}
	return nil
}

// AssignmentInput is one (role, value) pair from the course assignment
// form; value is empty (clear), "global", or a user id.
type AssignmentInput struct {
	Role  string `json:"role" validate:"required,rolelabel"`
	Value string `json:"value"`
}

// Parse interprets the form value. ok is false when the row must be
// cleared.
func (ai AssignmentInput) Parse() (userID int, global, ok bool, err error) {
	switch ai.Value {
	case "":
		return 0, false, false, nil
	case AssignGlobal:
		return 0, true, true, nil
	}
	id, err := strconv.Atoi(ai.Value)
	if err != nil || id < 1 {
		return 0, false, false, core.NewValidationError(nil, core.FieldError{
			Field: "value", Error: "must be empty, \"global\" or a user id",
		})
	}
	return id, false, true, nil
}

type SaveCourseAssignments struct {
	Assignments []AssignmentInput `json:"assignments" validate:"required,min=1,dive"`
}

func (sa *SaveCourseAssignments) Validate() error {
	for i := range sa.Assignments {
		sa.Assignments[i].Role = core.CleanString(sa.Assignments[i].Role, true /* lower */)
		sa.Assignments[i].Value = core.CleanString(sa.Assignments[i].Value, true /* lower */)
	}
	if err := core.Validate.Struct(sa); err != nil {
		return err
	}
	for _, in := range sa.Assignments {
		if _, _, _, err := in.Parse(); err != nil {
			return err
		}
	}
	return nil
}

// GlobalAssignmentInput is one (role, user) pair from the global
// assignment form; user id 0 clears the row.
type GlobalAssignmentInput struct {
	Role   string `json:"role" validate:"required,rolelabel"`
	UserID int    `json:"user_id" validate:"omitempty,min=1"`
}

type SaveGlobalAssignments struct {
	Assignments []GlobalAssignmentInput `json:"assignments" validate:"required,min=1,dive"`
}

func (sg *SaveGlobalAssignments) Validate() error {
	for i := range sg.Assignments {
		sg.Assignments[i].Role = core.CleanString(sg.Assignments[i].Role, true /* lower */)
	}
	return core.Validate.Struct(sg)
}
