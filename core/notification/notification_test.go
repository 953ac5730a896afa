package notification_test

import (
	"fmt"
	"testing"

	"github.com/trezcool/mapato/core/notification"
	inmemdb "github.com/trezcool/mapato/storage/database/inmem"
)

func TestNotifyCapsPerUser(t *testing.T) {
	db := inmemdb.Open()
	svc := notification.NewService(inmemdb.NewNotificationRepository(db))

	for i := 0; i < notification.MaxPerUser+5; i++ {
		if _, err := svc.Notify(1, 7, notification.ActionAssigned, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("Notify() failed: %v", err)
		}
	}
	// another user's list is unaffected
	if _, err := svc.Notify(2, 7, notification.ActionAssigned, "other user"); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}

	notifs, err := svc.ListForUser(1)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if len(notifs) != notification.MaxPerUser {
		t.Fatalf("notifications = %d, want %d", len(notifs), notification.MaxPerUser)
	}
	// newest first; the oldest entries were dropped
	if notifs[0].Message != fmt.Sprintf("msg %d", notification.MaxPerUser+4) {
		t.Errorf("newest message = %q", notifs[0].Message)
	}

	other, err := svc.ListForUser(2)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("other user's notifications = %d, want 1", len(other))
	}
}

func TestMarkRead(t *testing.T) {
	db := inmemdb.Open()
	svc := notification.NewService(inmemdb.NewNotificationRepository(db))

	n1, err := svc.Notify(1, 7, notification.ActionAssigned, "first")
	if err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if _, err = svc.Notify(1, 7, notification.ActionRemoved, "second"); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}

	if count, _ := svc.UnreadCount(1); count != 2 {
		t.Errorf("UnreadCount() = %d, want 2", count)
	}

	if err = svc.MarkRead(1, n1.ID); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	if count, _ := svc.UnreadCount(1); count != 1 {
		t.Errorf("UnreadCount() = %d, want 1", count)
	}

	// no ids marks everything
	if err = svc.MarkRead(1); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	if count, _ := svc.UnreadCount(1); count != 0 {
		t.Errorf("UnreadCount() = %d, want 0", count)
	}
}
