package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/mapato/core/split"
)

type splitTableRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	CourseID  int       `db:"course_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type percentageRow struct {
	ID         int             `db:"id"`
	TableID    int             `db:"table_id"`
	Role       string          `db:"role"`
	Percentage decimal.Decimal `db:"percentage"`
}

type courseAssignmentRow struct {
	ID       int    `db:"id"`
	CourseID int    `db:"course_id"`
	Role     string `db:"role"`
	UserID   int    `db:"user_id"`
	Global   bool   `db:"is_global"`
}

type globalAssignmentRow struct {
	ID     int    `db:"id"`
	Role   string `db:"role"`
	UserID int    `db:"user_id"`
}

type incomeRow struct {
	ID           int             `db:"id"`
	UserID       int             `db:"user_id"`
	Role         string          `db:"role"`
	CourseID     int             `db:"course_id"`
	Income       decimal.Decimal `db:"income"`
	SubmissionID int             `db:"submission_id"`
	RecordedAt   time.Time       `db:"recorded_at"`
}

func (row incomeRow) toEntry() split.IncomeEntry {
	return split.IncomeEntry(row)
}

type incomeJoinedRow struct {
	incomeRow
	SubmissionStatus string `db:"submission_status"`
	TitleName        string `db:"title_name"`
}

type splitRepository struct {
	db *sqlx.DB
}

func NewSplitRepository(db *sqlx.DB) split.Repository {
	return &splitRepository{db: db}
}

// ledgerTable maps a ledger name to its history table. Ledger names
// come from package constants, never from user input.
func ledgerTable(ledger string) string {
	if ledger == split.LedgerApproved {
		return "income_history_approved"
	}
	return "income_history_pending"
}

func (repo *splitRepository) CreateSplitTable(t split.SplitTable) (split.SplitTable, error) {
	err := repo.db.Get(&t.ID,
		`INSERT INTO income_split_tables (name, course_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		t.Name, t.CourseID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return split.SplitTable{}, errors.Wrap(err, "creating split table")
	}
	return t, nil
}

func (repo *splitRepository) QueryAllSplitTables() ([]split.SplitTable, error) {
	var rows []splitTableRow
	if err := repo.db.Select(&rows, `SELECT * FROM income_split_tables ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying split tables")
	}
	tables := make([]split.SplitTable, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, split.SplitTable(row))
	}
	return tables, nil
}

func (repo *splitRepository) getSplitTable(query string, args ...interface{}) (split.SplitTable, error) {
	var row splitTableRow
	if err := repo.db.Get(&row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return split.SplitTable{}, split.ErrTableNotFound
		}
		return split.SplitTable{}, errors.Wrap(err, "getting split table")
	}
	return split.SplitTable(row), nil
}

func (repo *splitRepository) GetSplitTableByID(id int) (split.SplitTable, error) {
	return repo.getSplitTable(`SELECT * FROM income_split_tables WHERE id = $1`, id)
}

func (repo *splitRepository) GetSplitTableByCourseID(courseID int) (split.SplitTable, error) {
	return repo.getSplitTable(`SELECT * FROM income_split_tables WHERE course_id = $1`, courseID)
}

func (repo *splitRepository) GetPercentages(tableID int) ([]split.SplitPercentage, error) {
	var rows []percentageRow
	err := repo.db.Select(&rows,
		`SELECT * FROM income_split_percentages WHERE table_id = $1 ORDER BY id`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, "querying split percentages")
	}
	pcts := make([]split.SplitPercentage, 0, len(rows))
	for _, row := range rows {
		pcts = append(pcts, split.SplitPercentage(row))
	}
	return pcts, nil
}

func (repo *splitRepository) ReplacePercentages(tableID int, rows []split.SplitPercentage) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.Exec(`DELETE FROM income_split_percentages WHERE table_id = $1`, tableID); err != nil {
		return errors.Wrap(err, "clearing split percentages")
	}
	for _, row := range rows {
		if _, err = tx.Exec(
			`INSERT INTO income_split_percentages (table_id, role, percentage) VALUES ($1, $2, $3)`,
			tableID, row.Role, row.Percentage,
		); err != nil {
			return errors.Wrap(err, "inserting split percentage")
		}
	}
	if _, err = tx.Exec(`UPDATE income_split_tables SET updated_at = now() WHERE id = $1`, tableID); err != nil {
		return errors.Wrap(err, "touching split table")
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo *splitRepository) GetCourseRoleAssignment(courseID int, role string) (split.CourseRoleAssignment, error) {
	var row courseAssignmentRow
	err := repo.db.Get(&row,
		`SELECT * FROM course_role_assignments WHERE course_id = $1 AND role = $2`, courseID, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return split.CourseRoleAssignment{}, split.ErrAssignmentNotFound
		}
		return split.CourseRoleAssignment{}, errors.Wrap(err, "getting course assignment")
	}
	return split.CourseRoleAssignment(row), nil
}

func (repo *splitRepository) QueryCourseRoleAssignments(courseID int) ([]split.CourseRoleAssignment, error) {
	var rows []courseAssignmentRow
	err := repo.db.Select(&rows,
		`SELECT * FROM course_role_assignments WHERE course_id = $1 ORDER BY role`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course assignments")
	}
	assigns := make([]split.CourseRoleAssignment, 0, len(rows))
	for _, row := range rows {
		assigns = append(assigns, split.CourseRoleAssignment(row))
	}
	return assigns, nil
}

func (repo *splitRepository) UpsertCourseRoleAssignment(a split.CourseRoleAssignment) (split.CourseRoleAssignment, error) {
	err := repo.db.Get(&a.ID,
		`INSERT INTO course_role_assignments (course_id, role, user_id, is_global)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (course_id, role)
		 DO UPDATE SET user_id = EXCLUDED.user_id, is_global = EXCLUDED.is_global
		 RETURNING id`,
		a.CourseID, a.Role, a.UserID, a.Global,
	)
	if err != nil {
		return split.CourseRoleAssignment{}, errors.Wrap(err, "upserting course assignment")
	}
	return a, nil
}

func (repo *splitRepository) DeleteCourseRoleAssignment(courseID int, role string) error {
	_, err := repo.db.Exec(
		`DELETE FROM course_role_assignments WHERE course_id = $1 AND role = $2`, courseID, role)
	return errors.Wrap(err, "deleting course assignment")
}

func (repo *splitRepository) GetGlobalRoleAssignment(role string) (split.GlobalRoleAssignment, error) {
	var row globalAssignmentRow
	err := repo.db.Get(&row, `SELECT * FROM global_role_assignments WHERE role = $1`, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return split.GlobalRoleAssignment{}, split.ErrAssignmentNotFound
		}
		return split.GlobalRoleAssignment{}, errors.Wrap(err, "getting global assignment")
	}
	return split.GlobalRoleAssignment(row), nil
}

func (repo *splitRepository) QueryGlobalRoleAssignments() ([]split.GlobalRoleAssignment, error) {
	var rows []globalAssignmentRow
	if err := repo.db.Select(&rows, `SELECT * FROM global_role_assignments ORDER BY role`); err != nil {
		return nil, errors.Wrap(err, "querying global assignments")
	}
	assigns := make([]split.GlobalRoleAssignment, 0, len(rows))
	for _, row := range rows {
		assigns = append(assigns, split.GlobalRoleAssignment(row))
	}
	return assigns, nil
}

func (repo *splitRepository) UpsertGlobalRoleAssignment(a split.GlobalRoleAssignment) (split.GlobalRoleAssignment, error) {
	err := repo.db.Get(&a.ID,
		`INSERT INTO global_role_assignments (role, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (role)
		 DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id`,
		a.Role, a.UserID,
	)
	if err != nil {
		return split.GlobalRoleAssignment{}, errors.Wrap(err, "upserting global assignment")
	}
	return a, nil
}

func (repo *splitRepository) DeleteGlobalRoleAssignment(role string) error {
	_, err := repo.db.Exec(`DELETE FROM global_role_assignments WHERE role = $1`, role)
	return errors.Wrap(err, "deleting global assignment")
}

func (repo *splitRepository) InsertIncome(ledger string, e split.IncomeEntry) (split.IncomeEntry, error) {
	err := repo.db.Get(&e.ID,
		`INSERT INTO `+ledgerTable(ledger)+` (user_id, role, course_id, income, submission_id, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		e.UserID, e.Role, e.CourseID, e.Income, e.SubmissionID, e.RecordedAt,
	)
	if err != nil {
		return split.IncomeEntry{}, errors.Wrap(err, "inserting income entry")
	}
	return e, nil
}

func (repo *splitRepository) DeleteIncomeBySubmissionID(submissionID int) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.Exec(`DELETE FROM income_history_pending WHERE submission_id = $1`, submissionID); err != nil {
		return errors.Wrap(err, "clearing pending income")
	}
	if _, err = tx.Exec(`DELETE FROM income_history_approved WHERE submission_id = $1`, submissionID); err != nil {
		return errors.Wrap(err, "clearing approved income")
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo *splitRepository) QueryIncomeByUser(ledger string, userID int) ([]split.IncomeRow, error) {
	var rows []incomeJoinedRow
	err := repo.db.Select(&rows,
		`SELECT i.*,
		        COALESCE(s.status, '') AS submission_status,
		        COALESCE(t.name, '') AS title_name
		 FROM `+ledgerTable(ledger)+` i
		 LEFT JOIN proof_submissions s ON s.id = i.submission_id
		 LEFT JOIN titles t ON t.id = s.title_id
		 WHERE i.user_id = $1
		 ORDER BY i.recorded_at DESC, i.id DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying income rows")
	}
	out := make([]split.IncomeRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, split.IncomeRow{
			IncomeEntry:      row.toEntry(),
			SubmissionStatus: row.SubmissionStatus,
			TitleName:        row.TitleName,
		})
	}
	return out, nil
}

func (repo *splitRepository) QueryIncomeBySubmissionID(ledger string, submissionID int) ([]split.IncomeEntry, error) {
	var rows []incomeRow
	err := repo.db.Select(&rows,
		`SELECT * FROM `+ledgerTable(ledger)+` WHERE submission_id = $1 ORDER BY id`, submissionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying income entries")
	}
	entries := make([]split.IncomeEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}
