package inmemdb

import (
	"github.com/trezcool/mapato/core/notification"
)

type notificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(n notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// newest first
	repo.db.notifications = append([]*notification.Notification{&n}, repo.db.notifications...)
	return n, nil
}

func (repo *notificationRepository) QueryUserNotifications(userID int) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var notifs []notification.Notification
	for _, n := range repo.db.notifications {
		if n.UserID == userID {
			notifs = append(notifs, *n)
		}
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(userID int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, n := range repo.db.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkRead(userID int, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for _, n := range repo.db.notifications {
		if n.UserID == userID && marked[n.ID] {
			n.Read = true
		}
	}
	return nil
}

func (repo *notificationRepository) MarkAllRead(userID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, n := range repo.db.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (repo *notificationRepository) TrimUserNotifications(userID, keep int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var count int
	kept := repo.db.notifications[:0]
	for _, n := range repo.db.notifications {
		if n.UserID == userID {
			count++
			if count > keep {
				continue
			}
		}
		kept = append(kept, n)
	}
	repo.db.notifications = kept
	return nil
}
