package inmemdb

import (
	"sort"

	"github.com/trezcool/mapato/core/account"
)

type accountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateAccount(a account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = repo.db.nextPK()
	repo.db.accounts[a.ID] = &a
	return a, nil
}

func (repo *accountRepository) QueryAllAccounts() ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	accounts := make([]account.Account, 0, len(repo.db.accounts))
	for _, a := range repo.db.accounts {
		accounts = append(accounts, *a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CreatedAt.After(accounts[j].CreatedAt) })
	return accounts, nil
}

func (repo *accountRepository) GetAccountByID(id int) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.accounts[id]; ok {
		return *a, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(a account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.accounts[a.ID]; !ok {
		return account.Account{}, account.ErrNotFound
	}
	repo.db.accounts[a.ID] = &a
	return a, nil
}

func (repo *accountRepository) DeleteAccountsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.accounts, id)
	}
	return nil
}

func (repo *accountRepository) CreateAssignment(a account.Assignment) (account.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = repo.db.nextPK()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *accountRepository) GetActiveAssignment(accountID int) (account.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.assignments {
		if a.AccountID == accountID && a.Status == account.StatusActive {
			return *a, nil
		}
	}
	return account.Assignment{}, account.ErrAssignmentNotFound
}

func (repo *accountRepository) DeactivateAssignments(accountID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, a := range repo.db.assignments {
		if a.AccountID == accountID {
			a.Status = account.StatusInactive
		}
	}
	return nil
}

func (repo *accountRepository) QueryUserAssignments(userID int) ([]account.UserAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var assignments []account.UserAssignment
	for _, a := range repo.db.assignments {
		if a.UserID != userID || a.Status != account.StatusActive {
			continue
		}
		ua := account.UserAssignment{Assignment: *a}
		if acct, ok := repo.db.accounts[a.AccountID]; ok {
			ua.Account = *acct
		}
		assignments = append(assignments, ua)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (repo *accountRepository) CreateLog(l account.Log) (account.Log, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	l.ID = repo.db.nextPK()
	repo.db.logs[l.ID] = &l
	return l, nil
}

func (repo *accountRepository) CountAssignments(accountID int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, l := range repo.db.logs {
		if l.AccountID == accountID && (l.Action == account.ActionAssigned || l.Action == account.ActionReassigned) {
			count++
		}
	}
	return count, nil
}

func (repo *accountRepository) QueryLogs(accountID int) ([]account.Log, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var logs []account.Log
	for _, l := range repo.db.logs {
		if accountID > 0 && l.AccountID != accountID {
			continue
		}
		logs = append(logs, *l)
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	return logs, nil
}

func (repo *accountRepository) GetFieldLabels() (account.FieldLabels, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.fieldLabels, nil
}

func (repo *accountRepository) SaveFieldLabels(labels account.FieldLabels) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.fieldLabels = labels
	return nil
}
