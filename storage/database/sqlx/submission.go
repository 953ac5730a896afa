package sqlxrepos

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core/submission"
)

type submissionRow struct {
	ID          int             `db:"id"`
	UserID      int             `db:"user_id"`
	TitleID     null.Int        `db:"title_id"`
	Amount      decimal.Decimal `db:"amount"`
	Status      string          `db:"status"`
	Notes       string          `db:"notes"`
	SubmittedAt time.Time       `db:"submitted_at"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (row submissionRow) toSubmission() submission.Submission {
	return submission.Submission(row)
}

type submissionRepository struct {
	db *sqlx.DB
}

func NewSubmissionRepository(db *sqlx.DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(s submission.Submission) (submission.Submission, error) {
	err := repo.db.Get(&s.ID,
		`INSERT INTO proof_submissions (user_id, title_id, amount, status, notes, submitted_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		s.UserID, s.TitleID, s.Amount, s.Status, s.Notes, s.SubmittedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "creating submission")
	}
	return s, nil
}

func (repo *submissionRepository) GetSubmissionByID(id int) (submission.Submission, error) {
	var row submissionRow
	if err := repo.db.Get(&row, `SELECT * FROM proof_submissions WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "getting submission")
	}
	return row.toSubmission(), nil
}

func (repo *submissionRepository) FilterSubmissions(filter submission.QueryFilter) ([]submission.Submission, error) {
	query := `SELECT * FROM proof_submissions WHERE true`
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.UserID > 0 {
		query += ` AND user_id = ` + arg(filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		query += ` AND status = ANY(` + arg(pq.StringArray(filter.Statuses)) + `)`
	}
	if !filter.From.IsZero() {
		query += ` AND submitted_at >= ` + arg(filter.From)
	}
	if !filter.To.IsZero() {
		query += ` AND submitted_at <= ` + arg(filter.To)
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	var rows []submissionRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toSubmission())
	}
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(s submission.Submission) (submission.Submission, error) {
	_, err := repo.db.Exec(
		`UPDATE proof_submissions SET
		   title_id = $2, amount = $3, status = $4, notes = $5, updated_at = $6
		 WHERE id = $1`,
		s.ID, s.TitleID, s.Amount, s.Status, s.Notes, s.UpdatedAt,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "updating submission")
	}
	return repo.GetSubmissionByID(s.ID)
}

func (repo *submissionRepository) DeleteSubmissionsByID(ids ...int) error {
	_, err := repo.db.Exec(`DELETE FROM proof_submissions WHERE id = ANY($1)`, intArray(ids))
	return errors.Wrap(err, "deleting submissions")
}
