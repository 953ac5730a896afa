package inmemdb

import (
	"github.com/trezcool/mapato/core/audit"
)

type auditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(e audit.Entry) (audit.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = repo.db.nextPK()
	// newest first
	repo.db.auditEntries = append([]*audit.Entry{&e}, repo.db.auditEntries...)
	return e, nil
}

func (repo *auditRepository) QueryEntries(offset, limit int) ([]audit.Entry, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	total := len(repo.db.auditEntries)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	entries := make([]audit.Entry, 0, end-offset)
	for _, e := range repo.db.auditEntries[offset:end] {
		entries = append(entries, *e)
	}
	return entries, total, nil
}
