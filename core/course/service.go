package course

import (
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound      = errors.New("course not found")
	ErrTitleNotFound = errors.New("title not found")
)

type (
	Repository interface {
		CreateCourse(c Course) (Course, error)
		QueryAllCourses() ([]Course, error)
		GetCourseByID(id int) (Course, error)
		UpdateCourse(c Course) (Course, error)
		DeleteCoursesByID(ids ...int) error

		CreateTitle(t Title) (Title, error)
		QueryAllTitles() ([]Title, error)
		GetTitleByID(id int) (Title, error)
		UpdateTitle(t Title) (Title, error)
		DeleteTitlesByID(ids ...int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	c := Course{
		Name:      nc.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.AuthorID > 0 {
		c.AuthorID = null.IntFrom(nc.AuthorID)
	}
	return svc.repo.CreateCourse(c)
}

func (svc *Service) QueryAll() ([]Course, error) {
	return svc.repo.QueryAllCourses()
}

func (svc *Service) GetByID(id int) (Course, error) {
	return svc.repo.GetCourseByID(id)
}

func (svc *Service) CreateTitle(nt NewTitle) (Title, error) {
	now := time.Now().UTC()
	t := Title{
		Name:      nt.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nt.CourseID > 0 {
		t.CourseID = null.IntFrom(nt.CourseID)
	}
	return svc.repo.CreateTitle(t)
}

func (svc *Service) QueryAllTitles() ([]Title, error) {
	return svc.repo.QueryAllTitles()
}

func (svc *Service) GetTitleByID(id int) (Title, error) {
	return svc.repo.GetTitleByID(id)
}

// ResolveByTitle walks title metadata up to the owning course.
// Returns ErrNotFound when the title is unknown, has no course set,
// or points to a course that no longer exists.
func (svc *Service) ResolveByTitle(titleID int) (Course, error) {
	t, err := svc.repo.GetTitleByID(titleID)
	if err != nil {
		return Course{}, err
	}
	if !t.CourseID.Valid {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourseByID(t.CourseID.Int)
}
