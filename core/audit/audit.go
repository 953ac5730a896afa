package audit

import (
	"errors"
	"time"
)

// PageSize rows per page in the admin listing.
const PageSize = 25

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound = errors.New("audit entry not found")
)

// Entry is one append-only audit log row.
type Entry struct {
	ID        int                    `json:"id"`
	ActorID   int                    `json:"actor_id"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"` // UTC
}

type (
	Repository interface {
		CreateEntry(e Entry) (Entry, error)
		// QueryEntries returns one page of entries, newest first,
		// along with the total row count.
		QueryEntries(offset, limit int) ([]Entry, int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Record(actorID int, typ, msg string, data map[string]interface{}) error {
	_, err := svc.repo.CreateEntry(Entry{
		ActorID:   actorID,
		Type:      typ,
		Message:   msg,
		Data:      data,
		CreatedAt: nowFunc().UTC(),
	})
	return err
}

// List returns the given 1-based page, newest entries first.
func (svc *Service) List(page int) ([]Entry, int, error) {
	if page < 1 {
		page = 1
	}
	return svc.repo.QueryEntries((page-1)*PageSize, PageSize)
}
