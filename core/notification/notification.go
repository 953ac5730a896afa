package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MaxPerUser keeps a user's dashboard list short; older entries are
// dropped when new ones come in.
const MaxPerUser = 20

// Actions
const (
	ActionAssigned        = "assigned"
	ActionReassigned      = "reassigned"
	ActionRemoved         = "removed"
	ActionSplitNotice     = "split_notice"
	ActionSplitConfigured = "split_configured"
	ActionSplitUpdated    = "split_updated"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound = errors.New("notification not found")
)

// Notification is one dashboard item for a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	AccountID int       `json:"account_id"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type (
	Repository interface {
		CreateNotification(n Notification) (Notification, error)
		// QueryUserNotifications returns a user's notifications,
		// newest first.
		QueryUserNotifications(userID int) ([]Notification, error)
		CountUnread(userID int) (int, error)
		MarkRead(userID int, ids ...string) error
		MarkAllRead(userID int) error
		// TrimUserNotifications drops a user's oldest notifications
		// past keep.
		TrimUserNotifications(userID, keep int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Notify(userID, accountID int, action, msg string) (Notification, error) {
	n, err := svc.repo.CreateNotification(Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		AccountID: accountID,
		Action:    action,
		Message:   msg,
		CreatedAt: nowFunc().UTC(),
	})
	if err != nil {
		return Notification{}, err
	}
	if err = svc.repo.TrimUserNotifications(userID, MaxPerUser); err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (svc *Service) ListForUser(userID int) ([]Notification, error) {
	return svc.repo.QueryUserNotifications(userID)
}

func (svc *Service) UnreadCount(userID int) (int, error) {
	return svc.repo.CountUnread(userID)
}

func (svc *Service) MarkRead(userID int, ids ...string) error {
	if len(ids) == 0 {
		return svc.repo.MarkAllRead(userID)
	}
	return svc.repo.MarkRead(userID, ids...)
}
