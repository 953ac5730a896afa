package split_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
	inmemdb "github.com/trezcool/mapato/storage/database/inmem"
	testutil "github.com/trezcool/mapato/tests"
)

type svcEnv struct {
	db       *inmemdb.DB
	repo     split.Repository
	userRepo user.Repository
	crsRepo  course.Repository
	subRepo  submission.Repository
	auditSvc *audit.Service
	mail     *testutil.EmailBackend
	svc      *split.Service
}

func newSvcEnv(t *testing.T) *svcEnv {
	t.Helper()
	db := inmemdb.Open()
	env := &svcEnv{
		db:       db,
		repo:     inmemdb.NewSplitRepository(db),
		userRepo: inmemdb.NewUserRepository(db),
		crsRepo:  inmemdb.NewCourseRepository(db),
		subRepo:  inmemdb.NewSubmissionRepository(db),
		auditSvc: audit.NewService(inmemdb.NewAuditRepository(db)),
		mail:     testutil.NewEmailBackend(),
	}
	env.svc = split.NewService(
		env.repo,
		user.NewService(env.userRepo, env.mail),
		course.NewService(env.crsRepo),
		env.auditSvc,
		env.mail,
		testutil.Logger{},
	)
	return env
}

func TestSavePercentagesValidation(t *testing.T) {
	tests := []struct {
		name    string
		rows    []split.PercentageInput
		wantErr bool
	}{
		{
			name: "exact hundred",
			rows: []split.PercentageInput{
				{Role: "student", Percentage: decimal.RequireFromString("60")},
				{Role: "lp_teacher", Percentage: decimal.RequireFromString("40")},
			},
		},
		{
			name: "within tolerance",
			rows: []split.PercentageInput{
				{Role: "student", Percentage: decimal.RequireFromString("33.33")},
				{Role: "subscriber", Percentage: decimal.RequireFromString("33.33")},
				{Role: "editor", Percentage: decimal.RequireFromString("33.34")},
			},
		},
		{
			name: "sum too low",
			rows: []split.PercentageInput{
				{Role: "student", Percentage: decimal.RequireFromString("60")},
			},
			wantErr: true,
		},
		{
			name: "sum too high",
			rows: []split.PercentageInput{
				{Role: "student", Percentage: decimal.RequireFromString("60")},
				{Role: "lp_teacher", Percentage: decimal.RequireFromString("50")},
			},
			wantErr: true,
		},
		{
			name: "negative percentage",
			rows: []split.PercentageInput{
				{Role: "student", Percentage: decimal.RequireFromString("150")},
				{Role: "lp_teacher", Percentage: decimal.RequireFromString("-50")},
			},
			wantErr: true,
		},
		{
			name: "bad role label",
			rows: []split.PercentageInput{
				{Role: "Not A Role!", Percentage: decimal.RequireFromString("100")},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := split.SavePercentages{Rows: tt.rows}
			if err := sp.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSavePercentagesDropsZeroRows(t *testing.T) {
	env := newSvcEnv(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Course", 0)
	table, err := env.svc.CreateTable(1, split.NewSplitTable{Name: "default", CourseID: crs.ID})
	if err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}

	rows, err := env.svc.SavePercentages(1, table.ID, split.SavePercentages{
		Rows: []split.PercentageInput{
			{Role: "student", Percentage: decimal.RequireFromString("100")},
			{Role: "editor", Percentage: decimal.Zero},
		},
	})
	if err != nil {
		t.Fatalf("SavePercentages() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("saved rows = %d, want 1 (zero rows dropped)", len(rows))
	}
	if rows[0].Role != "student" {
		t.Errorf("saved role = %q, want student", rows[0].Role)
	}
}

func TestCreateTableOnePerCourse(t *testing.T) {
	env := newSvcEnv(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Course", 0)

	if _, err := env.svc.CreateTable(1, split.NewSplitTable{Name: "default", CourseID: crs.ID}); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	_, err := env.svc.CreateTable(1, split.NewSplitTable{Name: "second", CourseID: crs.ID})
	if err == nil {
		t.Fatal("CreateTable() expected error for duplicate course table")
	}
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("CreateTable() error = %T, want *core.ValidationError", err)
	}
}

func TestSaveCourseAssignments(t *testing.T) {
	env := newSvcEnv(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Course", 0)
	alice := testutil.CreateUser(t, env.userRepo, "Alice", "alice1", "alice@test.test", "",
		[]string{user.RoleEditor}, true)
	bob := testutil.CreateUser(t, env.userRepo, "Bob", "bob123", "bob@test.test", "",
		[]string{user.RoleEditor}, true)

	// pin alice
	err := env.svc.SaveCourseAssignments(1, crs.ID, split.SaveCourseAssignments{
		Assignments: []split.AssignmentInput{{Role: "editor", Value: strconv.Itoa(alice.ID)}},
	})
	if err != nil {
		t.Fatalf("SaveCourseAssignments() failed: %v", err)
	}
	if got := len(env.mail.Inbox); got != 1 {
		t.Fatalf("emails sent = %d, want 1 (assignment notice)", got)
	}

	// saving the same value again is a no-op
	env.mail.Clear()
	err = env.svc.SaveCourseAssignments(1, crs.ID, split.SaveCourseAssignments{
		Assignments: []split.AssignmentInput{{Role: "editor", Value: strconv.Itoa(alice.ID)}},
	})
	if err != nil {
		t.Fatalf("SaveCourseAssignments() failed: %v", err)
	}
	if got := len(env.mail.Inbox); got != 0 {
		t.Fatalf("emails sent = %d, want 0 (unchanged)", got)
	}

	// moving editor to bob notifies both
	err = env.svc.SaveCourseAssignments(1, crs.ID, split.SaveCourseAssignments{
		Assignments: []split.AssignmentInput{{Role: "editor", Value: strconv.Itoa(bob.ID)}},
	})
	if err != nil {
		t.Fatalf("SaveCourseAssignments() failed: %v", err)
	}
	if got := len(env.mail.Inbox); got != 2 {
		t.Fatalf("emails sent = %d, want 2 (unassigned + assigned)", got)
	}

	// switching to the global marker notifies the unassigned user only
	env.mail.Clear()
	err = env.svc.SaveCourseAssignments(1, crs.ID, split.SaveCourseAssignments{
		Assignments: []split.AssignmentInput{{Role: "editor", Value: split.AssignGlobal}},
	})
	if err != nil {
		t.Fatalf("SaveCourseAssignments() failed: %v", err)
	}
	if got := len(env.mail.Inbox); got != 1 {
		t.Fatalf("emails sent = %d, want 1 (unassignment notice)", got)
	}
	a, err := env.repo.GetCourseRoleAssignment(crs.ID, "editor")
	if err != nil {
		t.Fatalf("GetCourseRoleAssignment() failed: %v", err)
	}
	if !a.Global {
		t.Error("assignment not marked global")
	}

	// clearing removes the row
	err = env.svc.SaveCourseAssignments(1, crs.ID, split.SaveCourseAssignments{
		Assignments: []split.AssignmentInput{{Role: "editor", Value: ""}},
	})
	if err != nil {
		t.Fatalf("SaveCourseAssignments() failed: %v", err)
	}
	if _, err = env.repo.GetCourseRoleAssignment(crs.ID, "editor"); err != split.ErrAssignmentNotFound {
		t.Errorf("GetCourseRoleAssignment() error = %v, want ErrAssignmentNotFound", err)
	}
}

func TestIncomeReporting(t *testing.T) {
	env := newSvcEnv(t)
	usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, env.crsRepo, "Course", 0)
	title := testutil.CreateTitle(t, env.crsRepo, "Lesson", crs.ID)

	approved := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "100", submission.StatusApproved)
	pending := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "50", submission.StatusPending)
	declined := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "25", submission.StatusDeclined)

	insert := func(ledger string, subID int, amount string) {
		t.Helper()
		if _, err := env.repo.InsertIncome(ledger, split.IncomeEntry{
			UserID: usr.ID, Role: "student", CourseID: crs.ID,
			Income: decimal.RequireFromString(amount), SubmissionID: subID,
			RecordedAt: approved.SubmittedAt,
		}); err != nil {
			t.Fatalf("InsertIncome() failed: %v", err)
		}
	}
	insert(split.LedgerApproved, approved.ID, "60.00")
	insert(split.LedgerPending, pending.ID, "30.00")
	// stale row whose submission has since been declined
	insert(split.LedgerApproved, declined.ID, "15.00")

	sum, err := env.svc.Summary(usr.ID)
	if err != nil {
		t.Fatalf("Summary() failed: %v", err)
	}
	if want := decimal.RequireFromString("60.00"); !sum.Approved.Equal(want) {
		t.Errorf("Summary().Approved = %s, want %s", sum.Approved, want)
	}
	if want := decimal.RequireFromString("30.00"); !sum.Pending.Equal(want) {
		t.Errorf("Summary().Pending = %s, want %s", sum.Pending, want)
	}

	history, err := env.svc.History(usr.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("History() rows = %d, want 3", len(history))
	}

	months, err := env.svc.Monthly(usr.ID)
	if err != nil {
		t.Fatalf("Monthly() failed: %v", err)
	}
	if len(months) != 1 {
		t.Fatalf("Monthly() groups = %d, want 1", len(months))
	}
	if months[0].Count != 1 {
		t.Errorf("Monthly()[0].Count = %d, want 1 (declined row excluded)", months[0].Count)
	}
	if want := decimal.RequireFromString("60.00"); !months[0].Total.Equal(want) {
		t.Errorf("Monthly()[0].Total = %s, want %s", months[0].Total, want)
	}
}
