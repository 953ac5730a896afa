package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core/course"
)

type courseRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	AuthorID  null.Int  `db:"author_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row courseRow) toCourse() course.Course {
	return course.Course(row)
}

type titleRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	CourseID  null.Int  `db:"course_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row titleRow) toTitle() course.Title {
	return course.Title(row)
}

type courseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(c course.Course) (course.Course, error) {
	err := repo.db.Get(&c.ID,
		`INSERT INTO courses (name, author_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		c.Name, c.AuthorID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	return c, nil
}

func (repo *courseRepository) QueryAllCourses() ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.Select(&rows, `SELECT * FROM courses ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(id int) (course.Course, error) {
	var row courseRow
	if err := repo.db.Get(&row, `SELECT * FROM courses WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) UpdateCourse(c course.Course) (course.Course, error) {
	_, err := repo.db.Exec(
		`UPDATE courses SET name = $2, author_id = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Name, c.AuthorID, c.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return repo.GetCourseByID(c.ID)
}

func (repo *courseRepository) DeleteCoursesByID(ids ...int) error {
	_, err := repo.db.Exec(`DELETE FROM courses WHERE id = ANY($1)`, intArray(ids))
	return errors.Wrap(err, "deleting courses")
}

func (repo *courseRepository) CreateTitle(t course.Title) (course.Title, error) {
	err := repo.db.Get(&t.ID,
		`INSERT INTO titles (name, course_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		t.Name, t.CourseID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return course.Title{}, errors.Wrap(err, "creating title")
	}
	return t, nil
}

func (repo *courseRepository) QueryAllTitles() ([]course.Title, error) {
	var rows []titleRow
	if err := repo.db.Select(&rows, `SELECT * FROM titles ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying titles")
	}
	titles := make([]course.Title, 0, len(rows))
	for _, row := range rows {
		titles = append(titles, row.toTitle())
	}
	return titles, nil
}

func (repo *courseRepository) GetTitleByID(id int) (course.Title, error) {
	var row titleRow
	if err := repo.db.Get(&row, `SELECT * FROM titles WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Title{}, course.ErrTitleNotFound
		}
		return course.Title{}, errors.Wrap(err, "getting title")
	}
	return row.toTitle(), nil
}

func (repo *courseRepository) UpdateTitle(t course.Title) (course.Title, error) {
	_, err := repo.db.Exec(
		`UPDATE titles SET name = $2, course_id = $3, updated_at = $4 WHERE id = $1`,
		t.ID, t.Name, t.CourseID, t.UpdatedAt,
	)
	if err != nil {
		return course.Title{}, errors.Wrap(err, "updating title")
	}
	return repo.GetTitleByID(t.ID)
}

func (repo *courseRepository) DeleteTitlesByID(ids ...int) error {
	_, err := repo.db.Exec(`DELETE FROM titles WHERE id = ANY($1)`, intArray(ids))
	return errors.Wrap(err, "deleting titles")
}

func intArray(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}
