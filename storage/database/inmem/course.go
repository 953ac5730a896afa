package inmemdb

import (
	"sort"

	"github.com/trezcool/mapato/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = repo.db.nextPK()
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) QueryAllCourses() ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(id int) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) DeleteCoursesByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.courses, id)
	}
	return nil
}

func (repo *courseRepository) CreateTitle(t course.Title) (course.Title, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = repo.db.nextPK()
	repo.db.titles[t.ID] = &t
	return t, nil
}

func (repo *courseRepository) QueryAllTitles() ([]course.Title, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	titles := make([]course.Title, 0, len(repo.db.titles))
	for _, t := range repo.db.titles {
		titles = append(titles, *t)
	}
	sort.Slice(titles, func(i, j int) bool { return titles[i].ID < titles[j].ID })
	return titles, nil
}

func (repo *courseRepository) GetTitleByID(id int) (course.Title, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.titles[id]; ok {
		return *t, nil
	}
	return course.Title{}, course.ErrTitleNotFound
}

func (repo *courseRepository) UpdateTitle(t course.Title) (course.Title, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.titles[t.ID]; !ok {
		return course.Title{}, course.ErrTitleNotFound
	}
	repo.db.titles[t.ID] = &t
	return t, nil
}

func (repo *courseRepository) DeleteTitlesByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.titles, id)
	}
	return nil
}
