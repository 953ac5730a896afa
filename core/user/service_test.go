package user_test

import (
	"errors"
	"testing"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/user"
	inmemdb "github.com/trezcool/mapato/storage/database/inmem"
	testutil "github.com/trezcool/mapato/tests"
)

func newUserSvc() (*user.Service, user.Repository, *testutil.EmailBackend) {
	db := inmemdb.Open()
	repo := inmemdb.NewUserRepository(db)
	mail := testutil.NewEmailBackend()
	return user.NewService(repo, mail), repo, mail
}

func TestCreate(t *testing.T) {
	svc, _, mail := newUserSvc()

	nu := user.NewUser{
		Name:            "Awe Some",
		Username:        "awesome",
		Email:           "awe@some.test",
		Password:        "G00d#Pass",
		PasswordConfirm: "G00d#Pass",
		Roles:           []string{user.RoleStudent},
	}
	if err := nu.Validate(svc); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	usr, err := svc.Create(nu)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if usr.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if !usr.IsActive {
		t.Error("new users must be active")
	}
	if err = usr.CheckPassword("G00d#Pass"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
	if got := len(mail.Inbox); got != 1 {
		t.Errorf("emails sent = %d, want 1 (welcome)", got)
	}

	// duplicate username is rejected
	dup := user.NewUser{
		Name:            "Copy Cat",
		Username:        "awesome",
		Email:           "copy@cat.test",
		Password:        "G00d#Pass",
		PasswordConfirm: "G00d#Pass",
	}
	err = dup.Validate(svc)
	if err == nil {
		t.Fatal("Validate() expected uniqueness error")
	}
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Validate() error = %T, want *core.ValidationError", err)
	}
}

func TestNewUserPasswordPolicy(t *testing.T) {
	svc, _, _ := newUserSvc()

	tests := []struct {
		name    string
		pwd     string
		wantErr bool
	}{
		{name: "too short", pwd: "Sh0r!", wantErr: true},
		{name: "has whitespace", pwd: "Abcd efg1!", wantErr: true},
		{name: "all numeric", pwd: "12345678", wantErr: true},
		{name: "no complexity", pwd: "abcdefgh", wantErr: true},
		{name: "similar to username", pwd: "Someuser1!", wantErr: true},
		{name: "good password", pwd: "G00d#Pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := user.NewUser{
				Name:            "Some User",
				Username:        "someuser1",
				Email:           "some@user.test",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			if err := nu.Validate(svc); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetAllByRole(t *testing.T) {
	svc, repo, _ := newUserSvc()

	ed1 := testutil.CreateUser(t, repo, "Editor One", "editor1", "e1@test.test", "",
		[]string{user.RoleEditor}, true)
	testutil.CreateUser(t, repo, "Editor Two", "editor2", "e2@test.test", "",
		[]string{user.RoleEditor}, false) // inactive
	testutil.CreateUser(t, repo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)

	editors, err := svc.GetAllByRole(user.RoleEditor)
	if err != nil {
		t.Fatalf("GetAllByRole() failed: %v", err)
	}
	if len(editors) != 1 || editors[0].ID != ed1.ID {
		t.Errorf("GetAllByRole() = %+v, want only active editor", editors)
	}
}

func TestResetPassword(t *testing.T) {
	svc, repo, mail := newUserSvc()
	usr := testutil.CreateUser(t, repo, "Reset Me", "resetme1", "reset@test.test", "0ld#Passw",
		[]string{user.RoleStudent}, true)

	if err := svc.RequestPasswordReset(usr.Email); err != nil {
		t.Fatalf("RequestPasswordReset() failed: %v", err)
	}
	if got := len(mail.Inbox); got != 1 {
		t.Fatalf("emails sent = %d, want 1", got)
	}

	if err := svc.RequestPasswordReset("nobody@test.test"); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("RequestPasswordReset() error = %v, want ErrNotFound", err)
	}
}
