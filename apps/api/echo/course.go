package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/user"
)

type courseAPI struct {
	svc     *course.Service
	userSvc *user.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service, userSvc *user.Service) {
	api := courseAPI{svc: svc, userSvc: userSvc}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())
	cg.GET("/:id", api.retrieve)

	tg := g.Group("/titles", jwt)
	tg.GET("", api.queryTitles)
	tg.POST("", api.createTitle, adminMiddleware())
	tg.GET("/:id", api.retrieveTitle)
}

func (api *courseAPI) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	crs, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseAPI) query(ctx echo.Context) error {
	courses, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseAPI) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	crs, err := api.svc.GetByID(id)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseAPI) createTitle(ctx echo.Context) error {
	var data course.NewTitle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTitle")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	title, err := api.svc.CreateTitle(data)
	if err != nil {
		return errors.Wrap(err, "creating title")
	}
	return ctx.JSON(http.StatusCreated, title)
}

func (api *courseAPI) queryTitles(ctx echo.Context) error {
	titles, err := api.svc.QueryAllTitles()
	if err != nil {
		return errors.Wrap(err, "querying titles")
	}
	if titles == nil {
		titles = []course.Title{}
	}
	return ctx.JSON(http.StatusOK, titles)
}

func (api *courseAPI) retrieveTitle(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	title, err := api.svc.GetTitleByID(id)
	if err != nil {
		if errors.Is(err, course.ErrTitleNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting title")
	}
	return ctx.JSON(http.StatusOK, title)
}
