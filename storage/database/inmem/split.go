package inmemdb

import (
	"sort"

	"github.com/trezcool/mapato/core/split"
)

type splitRepository struct {
	db *DB
}

func NewSplitRepository(db *DB) split.Repository {
	return &splitRepository{db: db}
}

func (repo *splitRepository) CreateSplitTable(t split.SplitTable) (split.SplitTable, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = repo.db.nextPK()
	repo.db.splitTables[t.ID] = &t
	return t, nil
}

func (repo *splitRepository) QueryAllSplitTables() ([]split.SplitTable, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tables := make([]split.SplitTable, 0, len(repo.db.splitTables))
	for _, t := range repo.db.splitTables {
		tables = append(tables, *t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	return tables, nil
}

func (repo *splitRepository) GetSplitTableByID(id int) (split.SplitTable, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.splitTables[id]; ok {
		return *t, nil
	}
	return split.SplitTable{}, split.ErrTableNotFound
}

func (repo *splitRepository) GetSplitTableByCourseID(courseID int) (split.SplitTable, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.splitTables {
		if t.CourseID == courseID {
			return *t, nil
		}
	}
	return split.SplitTable{}, split.ErrTableNotFound
}

func (repo *splitRepository) GetPercentages(tableID int) ([]split.SplitPercentage, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var rows []split.SplitPercentage
	for _, p := range repo.db.percentages {
		if p.TableID == tableID {
			rows = append(rows, *p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (repo *splitRepository) ReplacePercentages(tableID int, rows []split.SplitPercentage) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, p := range repo.db.percentages {
		if p.TableID == tableID {
			delete(repo.db.percentages, id)
		}
	}
	for _, row := range rows {
		row.ID = repo.db.nextPK()
		row.TableID = tableID
		p := row
		repo.db.percentages[p.ID] = &p
	}
	return nil
}

func (repo *splitRepository) GetCourseRoleAssignment(courseID int, role string) (split.CourseRoleAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.courseAssignments {
		if a.CourseID == courseID && a.Role == role {
			return *a, nil
		}
	}
	return split.CourseRoleAssignment{}, split.ErrAssignmentNotFound
}

func (repo *splitRepository) QueryCourseRoleAssignments(courseID int) ([]split.CourseRoleAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var assignments []split.CourseRoleAssignment
	for _, a := range repo.db.courseAssignments {
		if a.CourseID == courseID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (repo *splitRepository) UpsertCourseRoleAssignment(a split.CourseRoleAssignment) (split.CourseRoleAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.courseAssignments {
		if existing.CourseID == a.CourseID && existing.Role == a.Role {
			existing.UserID = a.UserID
			existing.Global = a.Global
			return *existing, nil
		}
	}
	a.ID = repo.db.nextPK()
	repo.db.courseAssignments[a.ID] = &a
	return a, nil
}

func (repo *splitRepository) DeleteCourseRoleAssignment(courseID int, role string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, a := range repo.db.courseAssignments {
		if a.CourseID == courseID && a.Role == role {
			delete(repo.db.courseAssignments, id)
		}
	}
	return nil
}

func (repo *splitRepository) GetGlobalRoleAssignment(role string) (split.GlobalRoleAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.globalAssignments {
		if a.Role == role {
			return *a, nil
		}
	}
	return split.GlobalRoleAssignment{}, split.ErrAssignmentNotFound
}

func (repo *splitRepository) QueryGlobalRoleAssignments() ([]split.GlobalRoleAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]split.GlobalRoleAssignment, 0, len(repo.db.globalAssignments))
	for _, a := range repo.db.globalAssignments {
		assignments = append(assignments, *a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (repo *splitRepository) UpsertGlobalRoleAssignment(a split.GlobalRoleAssignment) (split.GlobalRoleAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.globalAssignments {
		if existing.Role == a.Role {
			existing.UserID = a.UserID
			return *existing, nil
		}
	}
	a.ID = repo.db.nextPK()
	repo.db.globalAssignments[a.ID] = &a
	return a, nil
}

func (repo *splitRepository) DeleteGlobalRoleAssignment(role string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, a := range repo.db.globalAssignments {
		if a.Role == role {
			delete(repo.db.globalAssignments, id)
		}
	}
	return nil
}

func (repo *splitRepository) ledger(name string) map[int]*split.IncomeEntry {
	if name == split.LedgerApproved {
		return repo.db.approvedIncome
	}
	return repo.db.pendingIncome
}

func (repo *splitRepository) InsertIncome(ledger string, e split.IncomeEntry) (split.IncomeEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = repo.db.nextPK()
	repo.ledger(ledger)[e.ID] = &e
	return e, nil
}

func (repo *splitRepository) DeleteIncomeBySubmissionID(submissionID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, table := range []map[int]*split.IncomeEntry{repo.db.pendingIncome, repo.db.approvedIncome} {
		for id, e := range table {
			if e.SubmissionID == submissionID {
				delete(table, id)
			}
		}
	}
	return nil
}

func (repo *splitRepository) QueryIncomeByUser(ledger string, userID int) ([]split.IncomeRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var rows []split.IncomeRow
	for _, e := range repo.ledger(ledger) {
		if e.UserID != userID {
			continue
		}
		row := split.IncomeRow{IncomeEntry: *e}
		if sub, ok := repo.db.submissions[e.SubmissionID]; ok {
			row.SubmissionStatus = sub.Status
			if sub.TitleID.Valid {
				if title, ok := repo.db.titles[sub.TitleID.Int]; ok {
					row.TitleName = title.Name
				}
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (repo *splitRepository) QueryIncomeBySubmissionID(ledger string, submissionID int) ([]split.IncomeEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var entries []split.IncomeEntry
	for _, e := range repo.ledger(ledger) {
		if e.SubmissionID == submissionID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}
