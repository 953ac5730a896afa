package split

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
)

var (
	// errors
	ErrTableNotFound      = errors.New("split table not found")
	ErrTableExists        = errors.New("this course already has a split table")
	ErrAssignmentNotFound = errors.New("role assignment not found")
)

type (
	Repository interface {
		CreateSplitTable(t SplitTable) (SplitTable, error)
		QueryAllSplitTables() ([]SplitTable, error)
		GetSplitTableByID(id int) (SplitTable, error)
		GetSplitTableByCourseID(courseID int) (SplitTable, error)

		GetPercentages(tableID int) ([]SplitPercentage, error)
		// ReplacePercentages deletes the table's rows and inserts the
		// given set.
		ReplacePercentages(tableID int, rows []SplitPercentage) error

		GetCourseRoleAssignment(courseID int, role string) (CourseRoleAssignment, error)
		QueryCourseRoleAssignments(courseID int) ([]CourseRoleAssignment, error)
		UpsertCourseRoleAssignment(a CourseRoleAssignment) (CourseRoleAssignment, error)
		DeleteCourseRoleAssignment(courseID int, role string) error

		GetGlobalRoleAssignment(role string) (GlobalRoleAssignment, error)
		QueryGlobalRoleAssignments() ([]GlobalRoleAssignment, error)
		UpsertGlobalRoleAssignment(a GlobalRoleAssignment) (GlobalRoleAssignment, error)
		DeleteGlobalRoleAssignment(role string) error

		InsertIncome(ledger string, e IncomeEntry) (IncomeEntry, error)
		// DeleteIncomeBySubmissionID clears a submission's rows from
		// both ledgers.
		DeleteIncomeBySubmissionID(submissionID int) error
		QueryIncomeByUser(ledger string, userID int) ([]IncomeRow, error)
		QueryIncomeBySubmissionID(ledger string, submissionID int) ([]IncomeEntry, error)
	}

	Service struct {
		repo    Repository
		users   *user.Service
		courses *course.Service
		audit   *audit.Service
		mail    core.EmailService
		log     core.Logger
	}
)

func NewService(
	repo Repository,
	userSvc *user.Service,
	courseSvc *course.Service,
	auditSvc *audit.Service,
	mailSvc core.EmailService,
	log core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		users:   userSvc,
		courses: courseSvc,
		audit:   auditSvc,
		mail:    mailSvc,
		log:     log,
	}
}

func (svc *Service) CreateTable(actorID int, nt NewSplitTable) (SplitTable, error) {
	if _, err := svc.repo.GetSplitTableByCourseID(nt.CourseID); err == nil {
		return SplitTable{}, core.NewValidationError(ErrTableExists,
			core.FieldError{Field: "course_id", Error: ErrTableExists.Error()})
	} else if !errors.Is(err, ErrTableNotFound) {
		return SplitTable{}, err
	}

	now := time.Now().UTC()
	t, err := svc.repo.CreateSplitTable(SplitTable{
		Name:      nt.Name,
		CourseID:  nt.CourseID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return SplitTable{}, err
	}
	svc.record(actorID, "split_table_created", fmt.Sprintf("Split table %q created", t.Name),
		map[string]interface{}{"table_id": t.ID, "course_id": t.CourseID})
	return t, nil
}

func (svc *Service) QueryAllTables() ([]SplitTable, error) {
	return svc.repo.QueryAllSplitTables()
}

func (svc *Service) GetTableByID(id int) (SplitTable, error) {
	return svc.repo.GetSplitTableByID(id)
}

func (svc *Service) GetPercentages(tableID int) ([]SplitPercentage, error) {
	return svc.repo.GetPercentages(tableID)
}

// SavePercentages replaces a table's percentage rows. Zero-percentage
// rows are dropped; the sum tolerance is checked by SavePercentages.Validate.
func (svc *Service) SavePercentages(actorID, tableID int, sp SavePercentages) ([]SplitPercentage, error) {
	table, err := svc.repo.GetSplitTableByID(tableID)
	if err != nil {
		return nil, err
	}

	rows := make([]SplitPercentage, 0, len(sp.Rows))
	for _, in := range sp.Rows {
		if !in.Percentage.IsPositive() {
			continue
		}
		rows = append(rows, SplitPercentage{
			TableID:    table.ID,
			Role:       in.Role,
			Percentage: in.Percentage,
		})
	}
	if err = svc.repo.ReplacePercentages(table.ID, rows); err != nil {
		return nil, err
	}

	data := make(map[string]interface{}, len(rows)+1)
	data["table_id"] = table.ID
	for _, row := range rows {
		data[row.Role] = row.Percentage.String()
	}
	svc.record(actorID, "split_percentages_saved",
		fmt.Sprintf("Percentages updated for split table %q", table.Name), data)
	return svc.repo.GetPercentages(table.ID)
}

func (svc *Service) GetCourseAssignments(courseID int) ([]CourseRoleAssignment, error) {
	return svc.repo.QueryCourseRoleAssignments(courseID)
}

// SaveCourseAssignments applies the course assignment form: per role
// an empty value clears the row, "global" defers to the global
// assignment and a user id pins a recipient. Concrete users gained or
// lost along the way are notified by email.
func (svc *Service) SaveCourseAssignments(actorID, courseID int, sa SaveCourseAssignments) error {
	crs, err := svc.courses.GetByID(courseID)
	if err != nil {
		return err
	}

	current, err := svc.repo.QueryCourseRoleAssignments(courseID)
	if err != nil {
		return err
	}
	currentByRole := make(map[string]CourseRoleAssignment, len(current))
	for _, a := range current {
		currentByRole[a.Role] = a
	}

	changes := make(map[string]interface{})
	for _, in := range sa.Assignments {
		userID, global, ok, err := in.Parse()
		if err != nil {
			return err
		}
		old, hadOld := currentByRole[in.Role]

		if !ok { // clear
			if !hadOld {
				continue
			}
			if err = svc.repo.DeleteCourseRoleAssignment(courseID, in.Role); err != nil {
				return err
			}
			svc.notifyRoleChange(crs, in.Role, 0, old)
			changes[in.Role] = ""
			continue
		}

		if hadOld && old.Global == global && old.UserID == userID {
			continue // no change
		}
		if _, err = svc.repo.UpsertCourseRoleAssignment(CourseRoleAssignment{
			CourseID: courseID,
			Role:     in.Role,
			UserID:   userID,
			Global:   global,
		}); err != nil {
			return err
		}
		svc.notifyRoleChange(crs, in.Role, userID, old)
		if global {
			changes[in.Role] = AssignGlobal
		} else {
			changes[in.Role] = userID
		}
	}

	if len(changes) > 0 {
		changes["course_id"] = courseID
		svc.record(actorID, "course_assignments_saved",
			fmt.Sprintf("Role assignments updated for course %q", crs.Name), changes)
	}
	return nil
}

func (svc *Service) GetGlobalAssignments() ([]GlobalRoleAssignment, error) {
	return svc.repo.QueryGlobalRoleAssignments()
}

// SaveGlobalAssignments applies the global assignment form; a zero
// user id clears the role's row.
func (svc *Service) SaveGlobalAssignments(actorID int, sg SaveGlobalAssignments) error {
	current, err := svc.repo.QueryGlobalRoleAssignments()
	if err != nil {
		return err
	}
	currentByRole := make(map[string]GlobalRoleAssignment, len(current))
	for _, a := range current {
		currentByRole[a.Role] = a
	}

	changes := make(map[string]interface{})
	for _, in := range sg.Assignments {
		old, hadOld := currentByRole[in.Role]

		if in.UserID == 0 {
			if !hadOld {
				continue
			}
			if err = svc.repo.DeleteGlobalRoleAssignment(in.Role); err != nil {
				return err
			}
			changes[in.Role] = ""
			continue
		}
		if hadOld && old.UserID == in.UserID {
			continue
		}
		if _, err = svc.repo.UpsertGlobalRoleAssignment(GlobalRoleAssignment{
			Role:   in.Role,
			UserID: in.UserID,
		}); err != nil {
			return err
		}
		changes[in.Role] = in.UserID
	}

	if len(changes) > 0 {
		svc.record(actorID, "global_assignments_saved", "Global role assignments updated", changes)
	}
	return nil
}

// Summary totals a user's ledgers, skipping rows whose submission has
// since been declined or rejected.
func (svc *Service) Summary(userID int) (IncomeSummary, error) {
	sum := IncomeSummary{Pending: decimal.Zero, Approved: decimal.Zero}

	pending, err := svc.repo.QueryIncomeByUser(LedgerPending, userID)
	if err != nil {
		return IncomeSummary{}, err
	}
	for _, row := range pending {
		if excludedStatus(row.SubmissionStatus) {
			continue
		}
		sum.Pending = sum.Pending.Add(row.Income)
	}

	approved, err := svc.repo.QueryIncomeByUser(LedgerApproved, userID)
	if err != nil {
		return IncomeSummary{}, err
	}
	for _, row := range approved {
		if excludedStatus(row.SubmissionStatus) {
			continue
		}
		sum.Approved = sum.Approved.Add(row.Income)
	}
	return sum, nil
}

// History returns a user's income rows from both ledgers, newest first.
func (svc *Service) History(userID int) ([]IncomeRow, error) {
	pending, err := svc.repo.QueryIncomeByUser(LedgerPending, userID)
	if err != nil {
		return nil, err
	}
	approved, err := svc.repo.QueryIncomeByUser(LedgerApproved, userID)
	if err != nil {
		return nil, err
	}
	rows := append(pending, approved...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].RecordedAt.After(rows[j].RecordedAt) })
	return rows, nil
}

// Monthly groups a user's approved income by calendar month, newest
// month first.
func (svc *Service) Monthly(userID int) ([]MonthlyIncome, error) {
	rows, err := svc.repo.QueryIncomeByUser(LedgerApproved, userID)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*MonthlyIncome)
	for _, row := range rows {
		if excludedStatus(row.SubmissionStatus) {
			continue
		}
		month := row.RecordedAt.Format("2006-01")
		m, ok := byMonth[month]
		if !ok {
			m = &MonthlyIncome{Month: month, Total: decimal.Zero}
			byMonth[month] = m
		}
		m.Count++
		m.Total = m.Total.Add(row.Income)
	}

	months := make([]MonthlyIncome, 0, len(byMonth))
	for _, m := range byMonth {
		months = append(months, *m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month > months[j].Month })
	return months, nil
}

func excludedStatus(status string) bool {
	return status == submission.StatusDeclined || status == submission.StatusRejected
}

func (svc *Service) record(actorID int, typ, msg string, data map[string]interface{}) {
	if err := svc.audit.Record(actorID, typ, msg, data); err != nil {
		svc.log.Error("recording audit entry", err)
	}
}

// notifyRoleChange emails the concrete users affected by an assignment
// change; the "global" marker itself triggers no mail.
func (svc *Service) notifyRoleChange(crs course.Course, role string, newUserID int, old CourseRoleAssignment) {
	if old.UserID > 0 && old.UserID != newUserID {
		svc.sendRoleMail("role-unassigned",
			fmt.Sprintf("Role unassigned on %s", crs.Name), old.UserID, crs, role)
	}
	if newUserID > 0 && newUserID != old.UserID {
		svc.sendRoleMail("role-assigned",
			fmt.Sprintf("Role assigned on %s", crs.Name), newUserID, crs, role)
	}
}

func (svc *Service) sendRoleMail(template, subject string, userID int, crs course.Course, role string) {
	usr, err := svc.users.GetByID(userID)
	if err != nil || usr.Email == "" {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: template,
		TemplateData: struct {
			User   user.User
			Course course.Course
			Role   string
		}{usr, crs, role},
	})
}
