package inmemdb

import (
	"sort"

	"github.com/trezcool/mapato/core/submission"
)

type submissionRepository struct {
	db *DB
}

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) query() []submission.Submission {
	subs := make([]submission.Submission, 0, len(repo.db.submissions))
	for _, s := range repo.db.submissions {
		subs = append(subs, *s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs
}

func (repo *submissionRepository) CreateSubmission(s submission.Submission) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = repo.db.nextPK()
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *submissionRepository) GetSubmissionByID(id int) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return *s, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) FilterSubmissions(filter submission.QueryFilter) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.IsEmpty() {
		return repo.query(), nil
	}

	var subs []submission.Submission
	for _, s := range repo.query() {
		if filter.UserID > 0 && s.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 {
			var match bool
			for _, status := range filter.Statuses {
				if s.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if !filter.From.IsZero() && s.SubmittedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && s.SubmittedAt.After(filter.To) {
			continue
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(s submission.Submission) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.submissions[s.ID]; !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *submissionRepository) DeleteSubmissionsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.submissions, id)
	}
	return nil
}
