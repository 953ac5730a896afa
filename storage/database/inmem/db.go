package inmemdb

import (
	"sync"

	"github.com/trezcool/mapato/core/account"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/notification"
	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
)

// DB is a mutex-guarded map store backing every repository; handy for
// tests and local hacking.
type DB struct {
	mutex sync.RWMutex

	users       map[int]*user.User
	courses     map[int]*course.Course
	titles      map[int]*course.Title
	submissions map[int]*submission.Submission

	splitTables       map[int]*split.SplitTable
	percentages       map[int]*split.SplitPercentage
	courseAssignments map[int]*split.CourseRoleAssignment
	globalAssignments map[int]*split.GlobalRoleAssignment
	pendingIncome     map[int]*split.IncomeEntry
	approvedIncome    map[int]*split.IncomeEntry

	accounts      map[int]*account.Account
	assignments   map[int]*account.Assignment
	logs          map[int]*account.Log
	fieldLabels   account.FieldLabels
	notifications []*notification.Notification
	auditEntries  []*audit.Entry

	pkCount int
}

func Open() *DB {
	return &DB{
		users:             make(map[int]*user.User),
		courses:           make(map[int]*course.Course),
		titles:            make(map[int]*course.Title),
		submissions:       make(map[int]*submission.Submission),
		splitTables:       make(map[int]*split.SplitTable),
		percentages:       make(map[int]*split.SplitPercentage),
		courseAssignments: make(map[int]*split.CourseRoleAssignment),
		globalAssignments: make(map[int]*split.GlobalRoleAssignment),
		pendingIncome:     make(map[int]*split.IncomeEntry),
		approvedIncome:    make(map[int]*split.IncomeEntry),
		accounts:          make(map[int]*account.Account),
		assignments:       make(map[int]*account.Assignment),
		logs:              make(map[int]*account.Log),
	}
}

func (db *DB) nextPK() int {
	db.pkCount++
	return db.pkCount
}
