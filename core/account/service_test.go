package account_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mapato/core/account"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/notification"
	"github.com/trezcool/mapato/core/user"
	inmemdb "github.com/trezcool/mapato/storage/database/inmem"
	testutil "github.com/trezcool/mapato/tests"
)

type acctEnv struct {
	db       *inmemdb.DB
	repo     account.Repository
	userRepo user.Repository
	notifSvc *notification.Service
	mail     *testutil.EmailBackend
	svc      *account.Service
}

func newAcctEnv(t *testing.T) *acctEnv {
	t.Helper()
	db := inmemdb.Open()
	env := &acctEnv{
		db:       db,
		repo:     inmemdb.NewAccountRepository(db),
		userRepo: inmemdb.NewUserRepository(db),
		notifSvc: notification.NewService(inmemdb.NewNotificationRepository(db)),
		mail:     testutil.NewEmailBackend(),
	}
	env.svc = account.NewService(
		env.repo,
		user.NewService(env.userRepo, env.mail),
		env.notifSvc,
		audit.NewService(inmemdb.NewAuditRepository(db)),
		env.mail,
		testutil.Logger{},
	)
	return env
}

func (env *acctEnv) createAccount(t *testing.T) account.Account {
	t.Helper()
	acct, err := env.svc.Create(1, account.NewAccount{
		Platform: "Upwork",
		Username: "shared-upwork",
		Password: "hunter2",
		Email:    "shared@test.test",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return acct
}

func TestAccountCreateStartsIndividual(t *testing.T) {
	env := newAcctEnv(t)
	acct := env.createAccount(t)

	if acct.Type != account.TypeIndividual {
		t.Errorf("Type = %q, want %q", acct.Type, account.TypeIndividual)
	}
	if acct.SplitsConfigured {
		t.Error("new account must not have splits configured")
	}
}

func TestAccountAssign(t *testing.T) {
	env := newAcctEnv(t)
	acct := env.createAccount(t)
	alice := testutil.CreateUser(t, env.userRepo, "Alice", "alice1", "alice@test.test", "",
		[]string{user.RoleStudent}, true)

	asgn, err := env.svc.Assign(1, acct.ID, account.AssignAccount{UserID: alice.ID})
	if err != nil {
		t.Fatalf("Assign() failed: %v", err)
	}
	if asgn.Count != 1 {
		t.Errorf("assignment count = %d, want 1", asgn.Count)
	}

	// first assignment pins the first owner
	acct, err = env.svc.GetByID(acct.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if !acct.FirstOwnerID.Valid || acct.FirstOwnerID.Int != alice.ID {
		t.Errorf("FirstOwnerID = %v, want %d", acct.FirstOwnerID, alice.ID)
	}

	// the new holder got an email and a dashboard notification
	if got := len(env.mail.Inbox); got != 1 {
		t.Errorf("emails sent = %d, want 1", got)
	}
	notifs, err := env.notifSvc.ListForUser(alice.ID)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if len(notifs) != 1 || notifs[0].Action != notification.ActionAssigned {
		t.Errorf("notifications = %+v, want one %q", notifs, notification.ActionAssigned)
	}

	logs, err := env.svc.Logs(acct.ID)
	if err != nil {
		t.Fatalf("Logs() failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != account.ActionAssigned {
		t.Errorf("logs = %+v, want one %q", logs, account.ActionAssigned)
	}
}

func TestAccountReassignFlipsToPublic(t *testing.T) {
	env := newAcctEnv(t)
	acct := env.createAccount(t)
	alice := testutil.CreateUser(t, env.userRepo, "Alice", "alice1", "alice@test.test", "",
		[]string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, env.userRepo, "Bob", "bob123", "bob@test.test", "",
		[]string{user.RoleStudent}, true)

	if _, err := env.svc.Assign(1, acct.ID, account.AssignAccount{UserID: alice.ID}); err != nil {
		t.Fatalf("Assign() failed: %v", err)
	}
	env.mail.Clear()

	asgn, err := env.svc.Reassign(1, acct.ID, account.AssignAccount{UserID: bob.ID})
	if err != nil {
		t.Fatalf("Reassign() failed: %v", err)
	}
	if asgn.Count != 2 {
		t.Errorf("assignment count = %d, want 2", asgn.Count)
	}

	acct, err = env.svc.GetByID(acct.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if acct.Type != account.TypePublic {
		t.Errorf("Type = %q, want %q after first reassignment", acct.Type, account.TypePublic)
	}
	fifty := decimal.NewFromInt(50)
	if !acct.SplitFirstOwner.Equal(fifty) || !acct.SplitCurrentOwner.Equal(fifty) {
		t.Errorf("split = %s/%s, want 50/50", acct.SplitFirstOwner, acct.SplitCurrentOwner)
	}

	logs, err := env.svc.Logs(acct.ID)
	if err != nil {
		t.Fatalf("Logs() failed: %v", err)
	}
	if logs[0].Action != account.ActionReassigned || !logs[0].TypeChanged {
		t.Errorf("latest log = %+v, want reassigned with type change", logs[0])
	}

	// removed notice to alice, reassignment notice to bob, split notices
	// to both owners
	if got := len(env.mail.Inbox); got != 4 {
		t.Errorf("emails sent = %d, want 4", got)
	}

	// the old holder lost the account
	assignments, err := env.svc.UserAssignments(alice.ID)
	if err != nil {
		t.Fatalf("UserAssignments() failed: %v", err)
	}
	if len(assignments) != 0 {
		t.Errorf("old holder still has %d active assignments", len(assignments))
	}
	assignments, err = env.svc.UserAssignments(bob.ID)
	if err != nil {
		t.Fatalf("UserAssignments() failed: %v", err)
	}
	if len(assignments) != 1 {
		t.Errorf("new holder has %d active assignments, want 1", len(assignments))
	}
}

func TestAccountReassignWithoutPriorStaysIndividual(t *testing.T) {
	env := newAcctEnv(t)
	acct := env.createAccount(t)
	bob := testutil.CreateUser(t, env.userRepo, "Bob", "bob123", "bob@test.test", "",
		[]string{user.RoleStudent}, true)

	if _, err := env.svc.Reassign(1, acct.ID, account.AssignAccount{UserID: bob.ID}); err != nil {
		t.Fatalf("Reassign() failed: %v", err)
	}
	acct, err := env.svc.GetByID(acct.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if acct.Type != account.TypeIndividual {
		t.Errorf("Type = %q, want %q without prior assignments", acct.Type, account.TypeIndividual)
	}
}

func TestAccountSetSplit(t *testing.T) {
	env := newAcctEnv(t)
	acct := env.createAccount(t)
	alice := testutil.CreateUser(t, env.userRepo, "Alice", "alice1", "alice@test.test", "",
		[]string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, env.userRepo, "Bob", "bob123", "bob@test.test", "",
		[]string{user.RoleStudent}, true)

	// individual accounts reject splits
	_, err := env.svc.SetSplit(1, acct.ID, account.UpdateSplit{
		FirstOwner:   decimal.NewFromInt(60),
		CurrentOwner: decimal.NewFromInt(40),
	})
	if err == nil {
		t.Fatal("SetSplit() expected error for individual account")
	}

	// make it public via assign + reassign
	if _, err = env.svc.Assign(1, acct.ID, account.AssignAccount{UserID: alice.ID}); err != nil {
		t.Fatalf("Assign() failed: %v", err)
	}
	if _, err = env.svc.Reassign(1, acct.ID, account.AssignAccount{UserID: bob.ID}); err != nil {
		t.Fatalf("Reassign() failed: %v", err)
	}
	env.mail.Clear()

	// first configuration
	acct2, err := env.svc.SetSplit(1, acct.ID, account.UpdateSplit{
		FirstOwner:   decimal.NewFromInt(60),
		CurrentOwner: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("SetSplit() failed: %v", err)
	}
	if !acct2.SplitsConfigured {
		t.Error("SplitsConfigured not set")
	}
	if got := len(env.mail.Inbox); got != 2 {
		t.Errorf("emails sent = %d, want 2 (both owners)", got)
	}
	notifs, err := env.notifSvc.ListForUser(alice.ID)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if len(notifs) == 0 || notifs[0].Action != notification.ActionSplitConfigured {
		t.Errorf("latest notification action = %v, want %q", notifs, notification.ActionSplitConfigured)
	}

	// later updates use the update notice
	env.mail.Clear()
	if _, err = env.svc.SetSplit(1, acct.ID, account.UpdateSplit{
		FirstOwner:   decimal.NewFromInt(70),
		CurrentOwner: decimal.NewFromInt(30),
	}); err != nil {
		t.Fatalf("SetSplit() failed: %v", err)
	}
	notifs, err = env.notifSvc.ListForUser(alice.ID)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if len(notifs) == 0 || notifs[0].Action != notification.ActionSplitUpdated {
		t.Errorf("latest notification action = %v, want %q", notifs, notification.ActionSplitUpdated)
	}
}

func TestUpdateSplitValidation(t *testing.T) {
	tests := []struct {
		name           string
		first, current string
		wantErr        bool
	}{
		{name: "fifty fifty", first: "50", current: "50"},
		{name: "sixty forty", first: "60", current: "40"},
		{name: "does not sum to 100", first: "60", current: "50", wantErr: true},
		{name: "negative share", first: "150", current: "-50", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := account.UpdateSplit{
				FirstOwner:   decimal.RequireFromString(tt.first),
				CurrentOwner: decimal.RequireFromString(tt.current),
			}
			if err := us.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
