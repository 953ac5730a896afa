package course

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core"
)

type Course struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	AuthorID  null.Int  `json:"author_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Title is a sellable work published under a Course. Earnings proofs
// reference a Title; the owning Course is resolved through it.
type Title struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CourseID  null.Int  `json:"course_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewCourse struct {
	Name     string `json:"name" validate:"required"`
	AuthorID int    `json:"author_id" validate:"omitempty,min=1"`
}

func (nc *NewCourse) Validate() error {
	nc.Name = core.CleanString(nc.Name)
	return core.Validate.Struct(nc)
}

type NewTitle struct {
	Name     string `json:"name" validate:"required"`
	CourseID int    `json:"course_id" validate:"omitempty,min=1"`
}

func (nt *NewTitle) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	return core.Validate.Struct(nt)
}
