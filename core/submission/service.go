package submission

import (
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound = errors.New("submission not found")
)

type (
	Repository interface {
		CreateSubmission(s Submission) (Submission, error)
		GetSubmissionByID(id int) (Submission, error)
		// FilterSubmissions applies AND operation on available QueryFilter fields.
		FilterSubmissions(filter QueryFilter) ([]Submission, error)
		UpdateSubmission(s Submission) (Submission, error)
		DeleteSubmissionsByID(ids ...int) error
	}

	// SavedHook runs synchronously after a submission is created or
	// updated; registered by the income engine.
	SavedHook func(submissionID int)

	// DeletedHook runs synchronously after a submission is deleted;
	// registered by the income engine to clear its ledger rows.
	DeletedHook func(submissionID int)

	Service struct {
		repo     Repository
		hooks    []SavedHook
		delHooks []DeletedHook
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// OnSaved registers a hook invoked after every successful save.
func (svc *Service) OnSaved(hook SavedHook) {
	svc.hooks = append(svc.hooks, hook)
}

// OnDeleted registers a hook invoked after every successful delete.
func (svc *Service) OnDeleted(hook DeletedHook) {
	svc.delHooks = append(svc.delHooks, hook)
}

func (svc *Service) fireSaved(id int) {
	for _, hook := range svc.hooks {
		hook(id)
	}
}

func (svc *Service) fireDeleted(id int) {
	for _, hook := range svc.delHooks {
		hook(id)
	}
}

func (svc *Service) Create(ns NewSubmission) (Submission, error) {
	now := time.Now().UTC()
	s := Submission{
		UserID:      ns.UserID,
		Amount:      ns.Amount,
		Status:      StatusPending,
		Notes:       ns.Notes,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ns.TitleID > 0 {
		s.TitleID = null.IntFrom(ns.TitleID)
	}
	s, err := svc.repo.CreateSubmission(s)
	if err != nil {
		return Submission{}, err
	}
	svc.fireSaved(s.ID)
	return s, nil
}

func (svc *Service) GetByID(id int) (Submission, error) {
	return svc.repo.GetSubmissionByID(id)
}

func (svc *Service) Filter(filter QueryFilter) ([]Submission, error) {
	return svc.repo.FilterSubmissions(filter)
}

func (svc *Service) Update(id int, us UpdateSubmission) (Submission, error) {
	s, err := svc.repo.GetSubmissionByID(id)
	if err != nil {
		return Submission{}, err
	}
	if us.Status != "" {
		s.Status = us.Status
	}
	if !us.Amount.IsZero() {
		s.Amount = us.Amount
	}
	if us.Notes != "" {
		s.Notes = us.Notes
	}
	s.UpdatedAt = time.Now().UTC()
	s, err = svc.repo.UpdateSubmission(s)
	if err != nil {
		return Submission{}, err
	}
	svc.fireSaved(s.ID)
	return s, nil
}

func (svc *Service) Delete(ids ...int) error {
	if err := svc.repo.DeleteSubmissionsByID(ids...); err != nil {
		return err
	}
	for _, id := range ids {
		svc.fireDeleted(id)
	}
	return nil
}
