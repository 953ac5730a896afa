package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, name string, authorID int) course.Course {
	now := time.Now().UTC()
	crs := course.Course{Name: name, CreatedAt: now, UpdatedAt: now}
	if authorID > 0 {
		crs.AuthorID = null.IntFrom(authorID)
	}
	crs, err := repo.CreateCourse(crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateTitle(t *testing.T, repo course.Repository, name string, courseID int) course.Title {
	now := time.Now().UTC()
	title := course.Title{Name: name, CreatedAt: now, UpdatedAt: now}
	if courseID > 0 {
		title.CourseID = null.IntFrom(courseID)
	}
	title, err := repo.CreateTitle(title)
	if err != nil {
		t.Fatalf("CreateTitle() failed: %v", err)
	}
	return title
}

func CreateSubmission(
	t *testing.T,
	repo submission.Repository,
	userID, titleID int,
	amount string,
	status string,
) submission.Submission {
	now := time.Now().UTC()
	sub := submission.Submission{
		UserID:      userID,
		Amount:      decimal.RequireFromString(amount),
		Status:      status,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if titleID > 0 {
		sub.TitleID = null.IntFrom(titleID)
	}
	sub, err := repo.CreateSubmission(sub)
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

// EmailBackend captures sent messages for assertions.
type EmailBackend struct {
	mutex sync.Mutex
	Inbox []*core.EmailMessage
}

func NewEmailBackend() *EmailBackend { return &EmailBackend{} }

func (b *EmailBackend) SendMessages(messages ...*core.EmailMessage) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.Inbox = append(b.Inbox, messages...)
}

func (b *EmailBackend) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.Inbox = nil
}

// Logger is a no-op core.Logger for tests.
type Logger struct{}

func (Logger) Enable(bool)                  {}
func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}
