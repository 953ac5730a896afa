package split

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
)

var (
	nowFunc = time.Now // mockable

	hundred = decimal.NewFromInt(100)
)

// Calculator turns a proof-of-earnings submission into ledger rows.
// It owns no state of its own: every run deletes the submission's
// prior rows from both ledgers and writes a replacement set into the
// ledger matching the submission's status.
type Calculator struct {
	repo        Repository
	submissions *submission.Service
	courses     *course.Service
	users       *user.Service
	log         core.Logger
}

func NewCalculator(
	repo Repository,
	submissionSvc *submission.Service,
	courseSvc *course.Service,
	userSvc *user.Service,
	log core.Logger,
) *Calculator {
	return &Calculator{
		repo:        repo,
		submissions: submissionSvc,
		courses:     courseSvc,
		users:       userSvc,
		log:         log,
	}
}

// Recalculate recomputes income for one submission. Missing
// configuration (no course, no split table, no percentage rows, ...)
// means there is nothing to do and is not an error.
func (c *Calculator) Recalculate(submissionID int) error {
	sub, err := c.submissions.GetByID(submissionID)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "getting submission")
	}
	if !sub.Amount.IsPositive() {
		return nil
	}
	if !sub.TitleID.Valid {
		return nil
	}

	crs, err := c.courses.ResolveByTitle(sub.TitleID.Int)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) || errors.Is(err, course.ErrTitleNotFound) {
			return nil
		}
		return errors.Wrap(err, "resolving course")
	}

	submitter, err := c.users.GetByID(sub.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "getting submitting user")
	}

	table, err := c.repo.GetSplitTableByCourseID(crs.ID)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil
		}
		return errors.Wrap(err, "getting split table")
	}
	pcts, err := c.repo.GetPercentages(table.ID)
	if err != nil {
		return errors.Wrap(err, "getting percentages")
	}
	if len(pcts) == 0 {
		return nil
	}

	recordedAt := sub.SubmittedAt
	if recordedAt.IsZero() {
		recordedAt = sub.CreatedAt
	}
	if recordedAt.IsZero() {
		recordedAt = nowFunc().UTC()
	}

	if err = c.repo.DeleteIncomeBySubmissionID(sub.ID); err != nil {
		return errors.Wrap(err, "clearing prior income")
	}

	var ledger string
	switch sub.Status {
	case submission.StatusApproved:
		ledger = LedgerApproved
	case submission.StatusPending:
		ledger = LedgerPending
	default:
		return nil // no income for other statuses
	}

	for _, pct := range pcts {
		income := sub.Amount.Mul(pct.Percentage).Div(hundred).Round(2)
		if !income.IsPositive() {
			continue
		}
		recipients, err := c.resolveRecipients(crs, submitter, pct.Role)
		if err != nil {
			return err
		}
		for _, userID := range dedupe(recipients) {
			entry := IncomeEntry{
				UserID:       userID,
				Role:         pct.Role,
				CourseID:     crs.ID,
				Income:       income,
				SubmissionID: sub.ID,
				RecordedAt:   recordedAt,
			}
			if _, err = c.repo.InsertIncome(ledger, entry); err != nil {
				return errors.Wrapf(err, "inserting %s income for user %d", pct.Role, userID)
			}
		}
	}
	return nil
}

// resolveRecipients applies the three-tier policy for one role.
//
// A course assignment row, once present, is terminal: a concrete user
// wins outright, and the "global" marker resolves through the global
// assignment or pays nobody. Fallback logic runs only when no course
// assignment row exists at all.
func (c *Calculator) resolveRecipients(crs course.Course, submitter user.User, role string) ([]int, error) {
	assignment, err := c.repo.GetCourseRoleAssignment(crs.ID, role)
	switch {
	case err == nil:
		if assignment.Global {
			global, err := c.repo.GetGlobalRoleAssignment(role)
			if err != nil {
				if errors.Is(err, ErrAssignmentNotFound) {
					return nil, nil
				}
				return nil, errors.Wrap(err, "getting global assignment")
			}
			if global.UserID > 0 {
				return []int{global.UserID}, nil
			}
			return nil, nil
		}
		if assignment.UserID > 0 {
			return []int{assignment.UserID}, nil
		}
		return nil, nil
	case errors.Is(err, ErrAssignmentNotFound):
		// fall through
	default:
		return nil, errors.Wrap(err, "getting course assignment")
	}

	switch role {
	case user.RoleStudent, user.RoleSubscriber:
		if submitter.HasRole(role) {
			return []int{submitter.ID}, nil
		}
		return nil, nil
	case user.RoleAuthor, user.RoleInstructor, user.RoleLPTeacher:
		if crs.AuthorID.Valid {
			return []int{crs.AuthorID.Int}, nil
		}
		return nil, nil
	}

	holders, err := c.users.GetAllByRole(role)
	if err != nil {
		return nil, errors.Wrap(err, "listing role holders")
	}
	ids := make([]int, 0, len(holders))
	for _, u := range holders {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// RecalculateAll replays every Approved or Pending submission and
// returns how many were processed. Per-submission failures are logged
// and skipped so one bad record does not abort a bulk run.
func (c *Calculator) RecalculateAll() (int, error) {
	subs, err := c.submissions.Filter(submission.QueryFilter{
		Statuses: []string{submission.StatusApproved, submission.StatusPending},
	})
	if err != nil {
		return 0, errors.Wrap(err, "listing submissions")
	}

	var n int
	for _, sub := range subs {
		if err := c.Recalculate(sub.ID); err != nil {
			c.log.Error("recalculating submission", err, sub.ID)
			continue
		}
		n++
	}
	return n, nil
}

func dedupe(ids []int) []int {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[int]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
