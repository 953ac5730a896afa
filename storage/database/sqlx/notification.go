package sqlxrepos

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/notification"
)

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    int       `db:"user_id"`
	AccountID int       `db:"account_id"`
	Action    string    `db:"action"`
	Message   string    `db:"message"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(n notification.Notification) (notification.Notification, error) {
	_, err := repo.db.Exec(
		`INSERT INTO notifications (id, user_id, account_id, action, message, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.AccountID, n.Action, n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryUserNotifications(userID int) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.db.Select(&rows,
		`SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, notification.Notification(row))
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(userID int) (int, error) {
	var count int
	err := repo.db.Get(&count,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID)
	return count, errors.Wrap(err, "counting unread notifications")
}

func (repo *notificationRepository) MarkRead(userID int, ids ...string) error {
	_, err := repo.db.Exec(
		`UPDATE notifications SET read = true WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.StringArray(ids),
	)
	return errors.Wrap(err, "marking notifications read")
}

func (repo *notificationRepository) MarkAllRead(userID int) error {
	_, err := repo.db.Exec(`UPDATE notifications SET read = true WHERE user_id = $1`, userID)
	return errors.Wrap(err, "marking all notifications read")
}

func (repo *notificationRepository) TrimUserNotifications(userID, keep int) error {
	_, err := repo.db.Exec(
		`DELETE FROM notifications
		 WHERE user_id = $1 AND id NOT IN (
		   SELECT id FROM notifications
		   WHERE user_id = $1
		   ORDER BY created_at DESC, id DESC
		   LIMIT $2
		 )`,
		userID, keep,
	)
	return errors.Wrap(err, "trimming notifications")
}
