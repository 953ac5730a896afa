package split_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
	inmemdb "github.com/trezcool/mapato/storage/database/inmem"
	testutil "github.com/trezcool/mapato/tests"
)

type calcEnv struct {
	db       *inmemdb.DB
	repo     split.Repository
	userRepo user.Repository
	crsRepo  course.Repository
	subRepo  submission.Repository
	calc     *split.Calculator
}

func newCalcEnv(t *testing.T) *calcEnv {
	t.Helper()
	db := inmemdb.Open()
	env := &calcEnv{
		db:       db,
		repo:     inmemdb.NewSplitRepository(db),
		userRepo: inmemdb.NewUserRepository(db),
		crsRepo:  inmemdb.NewCourseRepository(db),
		subRepo:  inmemdb.NewSubmissionRepository(db),
	}
	mail := testutil.NewEmailBackend()
	env.calc = split.NewCalculator(
		env.repo,
		submission.NewService(env.subRepo),
		course.NewService(env.crsRepo),
		user.NewService(env.userRepo, mail),
		testutil.Logger{},
	)
	return env
}

// configure creates a course (with author), a title, a split table and
// the given percentage rows.
func (env *calcEnv) configure(t *testing.T, authorID int, pcts map[string]string) (course.Course, course.Title) {
	t.Helper()
	crs := testutil.CreateCourse(t, env.crsRepo, "Advanced Trading", authorID)
	title := testutil.CreateTitle(t, env.crsRepo, "Lesson One", crs.ID)

	table, err := env.repo.CreateSplitTable(split.SplitTable{Name: "default", CourseID: crs.ID})
	if err != nil {
		t.Fatalf("CreateSplitTable() failed: %v", err)
	}
	rows := make([]split.SplitPercentage, 0, len(pcts))
	for role, pct := range pcts {
		rows = append(rows, split.SplitPercentage{Role: role, Percentage: decimal.RequireFromString(pct)})
	}
	if err = env.repo.ReplacePercentages(table.ID, rows); err != nil {
		t.Fatalf("ReplacePercentages() failed: %v", err)
	}
	return crs, title
}

func (env *calcEnv) ledgerRows(t *testing.T, ledger string, submissionID int) []split.IncomeEntry {
	t.Helper()
	rows, err := env.repo.QueryIncomeBySubmissionID(ledger, submissionID)
	if err != nil {
		t.Fatalf("QueryIncomeBySubmissionID() failed: %v", err)
	}
	return rows
}

func (env *calcEnv) recalculate(t *testing.T, submissionID int) {
	t.Helper()
	if err := env.calc.Recalculate(submissionID); err != nil {
		t.Fatalf("Recalculate() failed: %v", err)
	}
}

func assertIncome(t *testing.T, rows []split.IncomeEntry, userID int, role, amount string) {
	t.Helper()
	want := decimal.RequireFromString(amount)
	for _, row := range rows {
		if row.UserID == userID && row.Role == role {
			if !row.Income.Equal(want) {
				t.Errorf("income for user %d role %q = %s, want %s", userID, role, row.Income, want)
			}
			return
		}
	}
	t.Errorf("no income row for user %d role %q", userID, role)
}

func TestCalculatorPreconditions(t *testing.T) {
	t.Run("missing submission is a no-op", func(t *testing.T) {
		env := newCalcEnv(t)
		env.recalculate(t, 404)
	})

	t.Run("non-positive amount yields no rows", func(t *testing.T) {
		env := newCalcEnv(t)
		usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
			[]string{user.RoleStudent}, true)
		_, title := env.configure(t, 0, map[string]string{"student": "100"})
		sub := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "0", submission.StatusApproved)

		env.recalculate(t, sub.ID)
		if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
			t.Errorf("got %d rows, want 0", len(rows))
		}
	})

	t.Run("unresolvable course yields no rows", func(t *testing.T) {
		env := newCalcEnv(t)
		usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
			[]string{user.RoleStudent}, true)
		title := testutil.CreateTitle(t, env.crsRepo, "Orphan Lesson", 0) // no course
		sub := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "100", submission.StatusApproved)

		env.recalculate(t, sub.ID)
		if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
			t.Errorf("got %d rows, want 0", len(rows))
		}
	})

	t.Run("missing submitting user yields no rows", func(t *testing.T) {
		env := newCalcEnv(t)
		_, title := env.configure(t, 0, map[string]string{"student": "100"})
		sub := testutil.CreateSubmission(t, env.subRepo, 404, title.ID, "100", submission.StatusApproved)

		env.recalculate(t, sub.ID)
		if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
			t.Errorf("got %d rows, want 0", len(rows))
		}
	})

	t.Run("no split table yields no rows", func(t *testing.T) {
		env := newCalcEnv(t)
		usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
			[]string{user.RoleStudent}, true)
		crs := testutil.CreateCourse(t, env.crsRepo, "Unconfigured", 0)
		title := testutil.CreateTitle(t, env.crsRepo, "Lesson", crs.ID)
		sub := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "100", submission.StatusApproved)

		env.recalculate(t, sub.ID)
		if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
			t.Errorf("got %d rows, want 0", len(rows))
		}
	})

	t.Run("no percentage rows yields no rows", func(t *testing.T) {
		env := newCalcEnv(t)
		usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
			[]string{user.RoleStudent}, true)
		_, title := env.configure(t, 0, nil)
		sub := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "100", submission.StatusApproved)

		env.recalculate(t, sub.ID)
		if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
			t.Errorf("got %d rows, want 0", len(rows))
		}
	})
}

func TestCalculatorStatusGating(t *testing.T) {
	env := newCalcEnv(t)
	usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)
	_, title := env.configure(t, 0, map[string]string{"student": "100"})
	sub := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "100", submission.StatusPending)

	env.recalculate(t, sub.ID)
	if rows := env.ledgerRows(t, split.LedgerPending, sub.ID); len(rows) != 1 {
		t.Fatalf("pending rows = %d, want 1", len(rows))
	}
	if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
		t.Fatalf("approved rows = %d, want 0", len(rows))
	}

	// approval moves the rows over
	sub.Status = submission.StatusApproved
	if _, err := env.subRepo.UpdateSubmission(sub); err != nil {
		t.Fatalf("UpdateSubmission() failed: %v", err)
	}
	env.recalculate(t, sub.ID)
	if rows := env.ledgerRows(t, split.LedgerPending, sub.ID); len(rows) != 0 {
		t.Fatalf("pending rows = %d, want 0", len(rows))
	}
	if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 1 {
		t.Fatalf("approved rows = %d, want 1", len(rows))
	}

	// declining revokes everything
	sub.Status = submission.StatusDeclined
	if _, err := env.subRepo.UpdateSubmission(sub); err != nil {
		t.Fatalf("UpdateSubmission() failed: %v", err)
	}
	env.recalculate(t, sub.ID)
	if rows := env.ledgerRows(t, split.LedgerPending, sub.ID); len(rows) != 0 {
		t.Fatalf("pending rows = %d, want 0", len(rows))
	}
	if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
		t.Fatalf("approved rows = %d, want 0", len(rows))
	}
}

func TestCalculatorIdempotence(t *testing.T) {
	env := newCalcEnv(t)
	usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)
	_, title := env.configure(t, 0, map[string]string{"student": "60"})
	sub := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "100", submission.StatusApproved)

	env.recalculate(t, sub.ID)
	env.recalculate(t, sub.ID)

	rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
	if len(rows) != 1 {
		t.Fatalf("approved rows = %d, want 1 (no duplicates)", len(rows))
	}
	assertIncome(t, rows, usr.ID, "student", "60")
}

func TestCalculatorRounding(t *testing.T) {
	env := newCalcEnv(t)
	usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)
	_, title := env.configure(t, 0, map[string]string{"student": "33.33", "subscriber": "0"})
	sub := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "100.00", submission.StatusApproved)

	env.recalculate(t, sub.ID)
	rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
	if len(rows) != 1 {
		t.Fatalf("approved rows = %d, want 1 (zero percentage emits nothing)", len(rows))
	}
	assertIncome(t, rows, usr.ID, "student", "33.33")
}

func TestCalculatorTierPriority(t *testing.T) {
	env := newCalcEnv(t)
	submitter := testutil.CreateUser(t, env.userRepo, "Submitter", "submit1", "sub@test.test", "",
		[]string{user.RoleEditor}, true)
	pinned := testutil.CreateUser(t, env.userRepo, "Pinned", "pinned1", "pin@test.test", "",
		[]string{user.RoleEditor}, true)
	other := testutil.CreateUser(t, env.userRepo, "Other", "other1", "oth@test.test", "",
		[]string{user.RoleEditor}, true)
	globalUsr := testutil.CreateUser(t, env.userRepo, "Global", "global1", "glo@test.test", "",
		[]string{user.RoleEditor}, true)

	crs, title := env.configure(t, 0, map[string]string{"editor": "100"})

	// both a course pin and a global pin exist; the course pin wins
	if _, err := env.repo.UpsertCourseRoleAssignment(split.CourseRoleAssignment{
		CourseID: crs.ID, Role: "editor", UserID: pinned.ID,
	}); err != nil {
		t.Fatalf("UpsertCourseRoleAssignment() failed: %v", err)
	}
	if _, err := env.repo.UpsertGlobalRoleAssignment(split.GlobalRoleAssignment{
		Role: "editor", UserID: globalUsr.ID,
	}); err != nil {
		t.Fatalf("UpsertGlobalRoleAssignment() failed: %v", err)
	}

	sub := testutil.CreateSubmission(t, env.subRepo, submitter.ID, title.ID, "100", submission.StatusApproved)
	env.recalculate(t, sub.ID)

	rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
	if len(rows) != 1 {
		t.Fatalf("approved rows = %d, want 1", len(rows))
	}
	assertIncome(t, rows, pinned.ID, "editor", "100")
	for _, row := range rows {
		if row.UserID == other.ID || row.UserID == globalUsr.ID {
			t.Errorf("unexpected recipient %d", row.UserID)
		}
	}
}

func TestCalculatorGlobalIndirection(t *testing.T) {
	t.Run("resolves to the global user", func(t *testing.T) {
		env := newCalcEnv(t)
		submitter := testutil.CreateUser(t, env.userRepo, "Submitter", "submit1", "sub@test.test", "",
			[]string{user.RoleStudent}, true)
		globalUsr := testutil.CreateUser(t, env.userRepo, "Global", "global1", "glo@test.test", "",
			[]string{user.RoleEditor}, true)

		crs, title := env.configure(t, 0, map[string]string{"editor": "100"})
		if _, err := env.repo.UpsertCourseRoleAssignment(split.CourseRoleAssignment{
			CourseID: crs.ID, Role: "editor", Global: true,
		}); err != nil {
			t.Fatalf("UpsertCourseRoleAssignment() failed: %v", err)
		}
		if _, err := env.repo.UpsertGlobalRoleAssignment(split.GlobalRoleAssignment{
			Role: "editor", UserID: globalUsr.ID,
		}); err != nil {
			t.Fatalf("UpsertGlobalRoleAssignment() failed: %v", err)
		}

		sub := testutil.CreateSubmission(t, env.subRepo, submitter.ID, title.ID, "100", submission.StatusApproved)
		env.recalculate(t, sub.ID)

		rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
		if len(rows) != 1 {
			t.Fatalf("approved rows = %d, want 1", len(rows))
		}
		assertIncome(t, rows, globalUsr.ID, "editor", "100")
	})

	t.Run("unset global target is terminal", func(t *testing.T) {
		env := newCalcEnv(t)
		submitter := testutil.CreateUser(t, env.userRepo, "Submitter", "submit1", "sub@test.test", "",
			[]string{user.RoleStudent}, true)
		// role holders exist, but must not be paid
		testutil.CreateUser(t, env.userRepo, "Editor", "editor1", "ed@test.test", "",
			[]string{user.RoleEditor}, true)

		crs, title := env.configure(t, 0, map[string]string{"editor": "100"})
		if _, err := env.repo.UpsertCourseRoleAssignment(split.CourseRoleAssignment{
			CourseID: crs.ID, Role: "editor", Global: true,
		}); err != nil {
			t.Fatalf("UpsertCourseRoleAssignment() failed: %v", err)
		}

		sub := testutil.CreateSubmission(t, env.subRepo, submitter.ID, title.ID, "100", submission.StatusApproved)
		env.recalculate(t, sub.ID)

		if rows := env.ledgerRows(t, split.LedgerApproved, sub.ID); len(rows) != 0 {
			t.Fatalf("approved rows = %d, want 0 (no fallback past \"global\")", len(rows))
		}
	})
}

func TestCalculatorFallbacks(t *testing.T) {
	t.Run("submitter gets student share only when holding the role", func(t *testing.T) {
		env := newCalcEnv(t)
		holder := testutil.CreateUser(t, env.userRepo, "Holder", "holder1", "h@test.test", "",
			[]string{user.RoleStudent}, true)
		nonHolder := testutil.CreateUser(t, env.userRepo, "NonHolder", "nonhold1", "n@test.test", "",
			[]string{user.RoleEditor}, true)
		_, title := env.configure(t, 0, map[string]string{"student": "100"})

		sub1 := testutil.CreateSubmission(t, env.subRepo, holder.ID, title.ID, "100", submission.StatusApproved)
		env.recalculate(t, sub1.ID)
		rows := env.ledgerRows(t, split.LedgerApproved, sub1.ID)
		if len(rows) != 1 {
			t.Fatalf("approved rows = %d, want 1", len(rows))
		}
		assertIncome(t, rows, holder.ID, "student", "100")

		sub2 := testutil.CreateSubmission(t, env.subRepo, nonHolder.ID, title.ID, "100", submission.StatusApproved)
		env.recalculate(t, sub2.ID)
		if rows := env.ledgerRows(t, split.LedgerApproved, sub2.ID); len(rows) != 0 {
			t.Fatalf("approved rows = %d, want 0", len(rows))
		}
	})

	t.Run("author-like roles fall back to the course author", func(t *testing.T) {
		env := newCalcEnv(t)
		author := testutil.CreateUser(t, env.userRepo, "Author", "author1", "a@test.test", "",
			[]string{user.RoleAuthor}, true)
		submitter := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
			[]string{user.RoleStudent}, true)
		_, title := env.configure(t, author.ID, map[string]string{"lp_teacher": "100"})

		sub := testutil.CreateSubmission(t, env.subRepo, submitter.ID, title.ID, "100", submission.StatusApproved)
		env.recalculate(t, sub.ID)

		rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
		if len(rows) != 1 {
			t.Fatalf("approved rows = %d, want 1", len(rows))
		}
		assertIncome(t, rows, author.ID, "lp_teacher", "100")
	})

	t.Run("other roles fan out to every holder", func(t *testing.T) {
		env := newCalcEnv(t)
		submitter := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
			[]string{user.RoleStudent}, true)
		ed1 := testutil.CreateUser(t, env.userRepo, "Editor One", "editor1", "e1@test.test", "",
			[]string{user.RoleEditor}, true)
		ed2 := testutil.CreateUser(t, env.userRepo, "Editor Two", "editor2", "e2@test.test", "",
			[]string{user.RoleEditor}, true)
		_, title := env.configure(t, 0, map[string]string{"editor": "50"})

		sub := testutil.CreateSubmission(t, env.subRepo, submitter.ID, title.ID, "100", submission.StatusApproved)
		env.recalculate(t, sub.ID)

		rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
		if len(rows) != 2 {
			t.Fatalf("approved rows = %d, want 2", len(rows))
		}
		assertIncome(t, rows, ed1.ID, "editor", "50")
		assertIncome(t, rows, ed2.ID, "editor", "50")
	})
}

func TestCalculatorEndToEnd(t *testing.T) {
	env := newCalcEnv(t)
	author := testutil.CreateUser(t, env.userRepo, "Author", "author1", "a@test.test", "",
		[]string{user.RoleAuthor}, true)
	submitter := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)
	_, title := env.configure(t, author.ID, map[string]string{"student": "60", "lp_teacher": "40"})

	sub := testutil.CreateSubmission(t, env.subRepo, submitter.ID, title.ID, "200.00", submission.StatusApproved)
	env.recalculate(t, sub.ID)

	rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
	if len(rows) != 2 {
		t.Fatalf("approved rows = %d, want 2", len(rows))
	}
	assertIncome(t, rows, submitter.ID, "student", "120.00")
	assertIncome(t, rows, author.ID, "lp_teacher", "80.00")
	if rows := env.ledgerRows(t, split.LedgerPending, sub.ID); len(rows) != 0 {
		t.Fatalf("pending rows = %d, want 0", len(rows))
	}
}

func TestCalculatorRecalculateAll(t *testing.T) {
	env := newCalcEnv(t)
	usr := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)
	_, title := env.configure(t, 0, map[string]string{"student": "100"})

	approved := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "10", submission.StatusApproved)
	pending := testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "20", submission.StatusPending)
	testutil.CreateSubmission(t, env.subRepo, usr.ID, title.ID, "30", submission.StatusDeclined)

	n, err := env.calc.RecalculateAll()
	if err != nil {
		t.Fatalf("RecalculateAll() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RecalculateAll() = %d, want 2", n)
	}
	if rows := env.ledgerRows(t, split.LedgerApproved, approved.ID); len(rows) != 1 {
		t.Errorf("approved rows = %d, want 1", len(rows))
	}
	if rows := env.ledgerRows(t, split.LedgerPending, pending.ID); len(rows) != 1 {
		t.Errorf("pending rows = %d, want 1", len(rows))
	}
}

// repeatingRoleRepo reports the first role holder twice.
type repeatingRoleRepo struct {
	user.Repository
}

func (r repeatingRoleRepo) GetUsersByRole(role string) ([]user.User, error) {
	users, err := r.Repository.GetUsersByRole(role)
	if err != nil || len(users) == 0 {
		return users, err
	}
	return append(users, users[0]), nil
}

func TestCalculatorPaysEachRecipientOnce(t *testing.T) {
	env := newCalcEnv(t)
	env.calc = split.NewCalculator(
		env.repo,
		submission.NewService(env.subRepo),
		course.NewService(env.crsRepo),
		user.NewService(repeatingRoleRepo{env.userRepo}, testutil.NewEmailBackend()),
		testutil.Logger{},
	)

	editor := testutil.CreateUser(t, env.userRepo, "Editor", "editor1", "e@test.test", "",
		[]string{user.RoleEditor}, true)
	submitter := testutil.CreateUser(t, env.userRepo, "Student", "student1", "s@test.test", "",
		[]string{user.RoleStudent}, true)
	_, title := env.configure(t, 0, map[string]string{"editor": "100"})
	sub := testutil.CreateSubmission(t, env.subRepo, submitter.ID, title.ID, "80", submission.StatusApproved)

	env.recalculate(t, sub.ID)

	rows := env.ledgerRows(t, split.LedgerApproved, sub.ID)
	if len(rows) != 1 {
		t.Fatalf("approved rows = %d, want 1", len(rows))
	}
	assertIncome(t, rows, editor.ID, "editor", "80")
}
