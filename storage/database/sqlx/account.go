package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core/account"
)

type accountRow struct {
	ID                int             `db:"id"`
	Platform          string          `db:"platform"`
	Username          string          `db:"username"`
	Password          string          `db:"password"`
	Email             string          `db:"email"`
	Notes             string          `db:"notes"`
	Type              string          `db:"type"`
	FirstOwnerID      null.Int        `db:"first_owner_id"`
	SplitFirstOwner   decimal.Decimal `db:"split_first_owner"`
	SplitCurrentOwner decimal.Decimal `db:"split_current_owner"`
	SplitsConfigured  bool            `db:"splits_configured"`
	CustomField1      string          `db:"custom_field_1"`
	CustomField2      string          `db:"custom_field_2"`
	CustomField3      string          `db:"custom_field_3"`
	CustomField4      string          `db:"custom_field_4"`
	CustomField5      string          `db:"custom_field_5"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (row accountRow) toAccount() account.Account {
	return account.Account(row)
}

type assignmentRow struct {
	ID         int       `db:"id"`
	AccountID  int       `db:"account_id"`
	UserID     int       `db:"user_id"`
	Status     string    `db:"status"`
	Count      int       `db:"count"`
	AssignedAt time.Time `db:"assigned_at"`
}

type logRow struct {
	ID          int       `db:"id"`
	AccountID   int       `db:"account_id"`
	OldUserID   null.Int  `db:"old_user_id"`
	NewUserID   int       `db:"new_user_id"`
	Action      string    `db:"action"`
	Notes       string    `db:"notes"`
	TypeChanged bool      `db:"type_changed"`
	CreatedAt   time.Time `db:"created_at"`
}

const fieldLabelsKey = "account_field_labels"

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateAccount(a account.Account) (account.Account, error) {
	err := repo.db.Get(&a.ID,
		`INSERT INTO accounts (
		   platform, username, password, email, notes, type, first_owner_id,
		   split_first_owner, split_current_owner, splits_configured,
		   custom_field_1, custom_field_2, custom_field_3, custom_field_4, custom_field_5,
		   created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id`,
		a.Platform, a.Username, a.Password, a.Email, a.Notes, a.Type, a.FirstOwnerID,
		a.SplitFirstOwner, a.SplitCurrentOwner, a.SplitsConfigured,
		a.CustomField1, a.CustomField2, a.CustomField3, a.CustomField4, a.CustomField5,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "creating account")
	}
	return a, nil
}

func (repo *accountRepository) QueryAllAccounts() ([]account.Account, error) {
	var rows []accountRow
	if err := repo.db.Select(&rows, `SELECT * FROM accounts ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	accts := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accts = append(accts, row.toAccount())
	}
	return accts, nil
}

func (repo *accountRepository) GetAccountByID(id int) (account.Account, error) {
	var row accountRow
	if err := repo.db.Get(&row, `SELECT * FROM accounts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "getting account")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) UpdateAccount(a account.Account) (account.Account, error) {
	_, err := repo.db.Exec(
		`UPDATE accounts SET
		   platform = $2, username = $3, password = $4, email = $5, notes = $6,
		   type = $7, first_owner_id = $8,
		   split_first_owner = $9, split_current_owner = $10, splits_configured = $11,
		   custom_field_1 = $12, custom_field_2 = $13, custom_field_3 = $14,
		   custom_field_4 = $15, custom_field_5 = $16,
		   updated_at = $17
		 WHERE id = $1`,
		a.ID, a.Platform, a.Username, a.Password, a.Email, a.Notes,
		a.Type, a.FirstOwnerID,
		a.SplitFirstOwner, a.SplitCurrentOwner, a.SplitsConfigured,
		a.CustomField1, a.CustomField2, a.CustomField3, a.CustomField4, a.CustomField5,
		a.UpdatedAt,
	)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return repo.GetAccountByID(a.ID)
}

func (repo *accountRepository) DeleteAccountsByID(ids ...int) error {
	_, err := repo.db.Exec(`DELETE FROM accounts WHERE id = ANY($1)`, intArray(ids))
	return errors.Wrap(err, "deleting accounts")
}

func (repo *accountRepository) CreateAssignment(a account.Assignment) (account.Assignment, error) {
	err := repo.db.Get(&a.ID,
		`INSERT INTO account_assignments (account_id, user_id, status, count, assigned_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		a.AccountID, a.UserID, a.Status, a.Count, a.AssignedAt,
	)
	if err != nil {
		return account.Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return a, nil
}

func (repo *accountRepository) GetActiveAssignment(accountID int) (account.Assignment, error) {
	var row assignmentRow
	err := repo.db.Get(&row,
		`SELECT * FROM account_assignments
		 WHERE account_id = $1 AND status = $2
		 ORDER BY assigned_at DESC, id DESC
		 LIMIT 1`,
		accountID, account.StatusActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Assignment{}, account.ErrAssignmentNotFound
		}
		return account.Assignment{}, errors.Wrap(err, "getting active assignment")
	}
	return account.Assignment(row), nil
}

func (repo *accountRepository) DeactivateAssignments(accountID int) error {
	_, err := repo.db.Exec(
		`UPDATE account_assignments SET status = $2 WHERE account_id = $1`,
		accountID, account.StatusInactive,
	)
	return errors.Wrap(err, "deactivating assignments")
}

func (repo *accountRepository) QueryUserAssignments(userID int) ([]account.UserAssignment, error) {
	var rows []struct {
		assignmentRow
		Account accountRow `db:"account"`
	}
	err := repo.db.Select(&rows,
		`SELECT aa.*,
		        a.id "account.id", a.platform "account.platform", a.username "account.username",
		        a.password "account.password", a.email "account.email", a.notes "account.notes",
		        a.type "account.type", a.first_owner_id "account.first_owner_id",
		        a.split_first_owner "account.split_first_owner",
		        a.split_current_owner "account.split_current_owner",
		        a.splits_configured "account.splits_configured",
		        a.custom_field_1 "account.custom_field_1", a.custom_field_2 "account.custom_field_2",
		        a.custom_field_3 "account.custom_field_3", a.custom_field_4 "account.custom_field_4",
		        a.custom_field_5 "account.custom_field_5",
		        a.created_at "account.created_at", a.updated_at "account.updated_at"
		 FROM account_assignments aa
		 JOIN accounts a ON a.id = aa.account_id
		 WHERE aa.user_id = $1 AND aa.status = $2
		 ORDER BY aa.assigned_at DESC, aa.id DESC`,
		userID, account.StatusActive,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying user assignments")
	}
	out := make([]account.UserAssignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, account.UserAssignment{
			Assignment: account.Assignment(row.assignmentRow),
			Account:    row.Account.toAccount(),
		})
	}
	return out, nil
}

func (repo *accountRepository) CreateLog(l account.Log) (account.Log, error) {
	err := repo.db.Get(&l.ID,
		`INSERT INTO assignment_logs (account_id, old_user_id, new_user_id, action, notes, type_changed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		l.AccountID, l.OldUserID, l.NewUserID, l.Action, l.Notes, l.TypeChanged, l.CreatedAt,
	)
	if err != nil {
		return account.Log{}, errors.Wrap(err, "creating assignment log")
	}
	return l, nil
}

func (repo *accountRepository) CountAssignments(accountID int) (int, error) {
	var count int
	err := repo.db.Get(&count,
		`SELECT count(*) FROM assignment_logs
		 WHERE account_id = $1 AND action IN ($2, $3)`,
		accountID, account.ActionAssigned, account.ActionReassigned,
	)
	return count, errors.Wrap(err, "counting assignments")
}

func (repo *accountRepository) QueryLogs(accountID int) ([]account.Log, error) {
	query := `SELECT * FROM assignment_logs`
	var args []interface{}
	if accountID > 0 {
		query += ` WHERE account_id = $1`
		args = append(args, accountID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []logRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignment logs")
	}
	logs := make([]account.Log, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, account.Log(row))
	}
	return logs, nil
}

func (repo *accountRepository) GetFieldLabels() (account.FieldLabels, error) {
	var raw []byte
	err := repo.db.Get(&raw, `SELECT value FROM settings WHERE key = $1`, fieldLabelsKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.FieldLabels{}, nil
		}
		return account.FieldLabels{}, errors.Wrap(err, "getting field labels")
	}
	var labels account.FieldLabels
	if err = json.Unmarshal(raw, &labels); err != nil {
		return account.FieldLabels{}, errors.Wrap(err, "decoding field labels")
	}
	return labels, nil
}

func (repo *accountRepository) SaveFieldLabels(labels account.FieldLabels) error {
	raw, err := json.Marshal(labels)
	if err != nil {
		return errors.Wrap(err, "encoding field labels")
	}
	_, err = repo.db.Exec(
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		fieldLabelsKey, raw,
	)
	return errors.Wrap(err, "saving field labels")
}
