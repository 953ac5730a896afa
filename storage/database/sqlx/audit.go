package sqlxrepos

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/audit"
)

type auditRow struct {
	ID        int       `db:"id"`
	ActorID   int       `db:"actor_id"`
	Type      string    `db:"type"`
	Message   string    `db:"message"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
}

func (row auditRow) toEntry() (audit.Entry, error) {
	e := audit.Entry{
		ID:        row.ID,
		ActorID:   row.ActorID,
		Type:      row.Type,
		Message:   row.Message,
		CreatedAt: row.CreatedAt,
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &e.Data); err != nil {
			return audit.Entry{}, errors.Wrap(err, "decoding audit data")
		}
	}
	return e, nil
}

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(e audit.Entry) (audit.Entry, error) {
	var data []byte
	if e.Data != nil {
		var err error
		if data, err = json.Marshal(e.Data); err != nil {
			return audit.Entry{}, errors.Wrap(err, "encoding audit data")
		}
	}
	err := repo.db.Get(&e.ID,
		`INSERT INTO audit_log (actor_id, type, message, data, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.ActorID, e.Type, e.Message, data, e.CreatedAt,
	)
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "creating audit entry")
	}
	return e, nil
}

func (repo *auditRepository) QueryEntries(offset, limit int) ([]audit.Entry, int, error) {
	var total int
	if err := repo.db.Get(&total, `SELECT count(*) FROM audit_log`); err != nil {
		return nil, 0, errors.Wrap(err, "counting audit entries")
	}

	var rows []auditRow
	err := repo.db.Select(&rows,
		`SELECT * FROM audit_log ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying audit entries")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntry()
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, nil
}
