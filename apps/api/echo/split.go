package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/user"
)

type splitAPI struct {
	svc     *split.Service
	calc    *split.Calculator
	userSvc *user.Service
}

func registerSplitAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *split.Service,
	calc *split.Calculator,
	userSvc *user.Service,
) {
	api := splitAPI{svc: svc, calc: calc, userSvc: userSvc}

	sg := g.Group("/split", jwt, adminMiddleware())

	sg.GET("/tables", api.queryTables)
	sg.POST("/tables", api.createTable)
	sg.GET("/tables/:id/percentages", api.getPercentages)
	sg.PUT("/tables/:id/percentages", api.savePercentages)

	sg.GET("/courses/:id/assignments", api.getCourseAssignments)
	sg.PUT("/courses/:id/assignments", api.saveCourseAssignments)

	sg.GET("/global-assignments", api.getGlobalAssignments)
	sg.PUT("/global-assignments", api.saveGlobalAssignments)

	sg.POST("/recalculate", api.recalculate)
}

func (api *splitAPI) queryTables(ctx echo.Context) error {
	tables, err := api.svc.QueryAllTables()
	if err != nil {
		return errors.Wrap(err, "querying split tables")
	}
	if tables == nil {
		tables = []split.SplitTable{}
	}
	return ctx.JSON(http.StatusOK, tables)
}

func (api *splitAPI) createTable(ctx echo.Context) error {
	var data split.NewSplitTable
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSplitTable")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	table, err := api.svc.CreateTable(ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating split table")
	}
	return ctx.JSON(http.StatusCreated, table)
}

func (api *splitAPI) getPercentages(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	pcts, err := api.svc.GetPercentages(id)
	if err != nil {
		return errors.Wrap(err, "querying split percentages")
	}
	if pcts == nil {
		pcts = []split.SplitPercentage{}
	}
	return ctx.JSON(http.StatusOK, pcts)
}

func (api *splitAPI) savePercentages(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data split.SavePercentages
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SavePercentages")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	pcts, err := api.svc.SavePercentages(ctxUsr.ID, id, data)
	if err != nil {
		if errors.Is(err, split.ErrTableNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "saving split percentages")
	}
	return ctx.JSON(http.StatusOK, pcts)
}

func (api *splitAPI) getCourseAssignments(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	assigns, err := api.svc.GetCourseAssignments(id)
	if err != nil {
		return errors.Wrap(err, "querying course assignments")
	}
	if assigns == nil {
		assigns = []split.CourseRoleAssignment{}
	}
	return ctx.JSON(http.StatusOK, assigns)
}

func (api *splitAPI) saveCourseAssignments(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data split.SaveCourseAssignments
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveCourseAssignments")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.SaveCourseAssignments(ctxUsr.ID, id, data); err != nil {
		return errors.Wrap(err, "saving course assignments")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *splitAPI) getGlobalAssignments(ctx echo.Context) error {
	assigns, err := api.svc.GetGlobalAssignments()
	if err != nil {
		return errors.Wrap(err, "querying global assignments")
	}
	if assigns == nil {
		assigns = []split.GlobalRoleAssignment{}
	}
	return ctx.JSON(http.StatusOK, assigns)
}

func (api *splitAPI) saveGlobalAssignments(ctx echo.Context) error {
	var data split.SaveGlobalAssignments
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveGlobalAssignments")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.SaveGlobalAssignments(ctxUsr.ID, data); err != nil {
		return errors.Wrap(err, "saving global assignments")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// recalculate re-runs the income calculation for one submission, or
// for every submission when none is given.
func (api *splitAPI) recalculate(ctx echo.Context) error {
	var data RecalculateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecalculateRequest")
	}

	if data.SubmissionID > 0 {
		if err := api.calc.Recalculate(data.SubmissionID); err != nil {
			return errors.Wrap(err, "recalculating submission")
		}
		return ctx.JSON(http.StatusOK, RecalculateResponse{Processed: 1})
	}

	n, err := api.calc.RecalculateAll()
	if err != nil {
		return errors.Wrap(err, "recalculating all submissions")
	}
	return ctx.JSON(http.StatusOK, RecalculateResponse{Processed: n})
}

type (
	RecalculateRequest struct {
		SubmissionID int `json:"submission_id"`
	}

	RecalculateResponse struct {
		Processed int `json:"processed"`
	}
)
