package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
)

type submissionAPI struct {
	svc     *submission.Service
	userSvc *user.Service
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *submission.Service, userSvc *user.Service) {
	api := submissionAPI{svc: svc, userSvc: userSvc}

	sg := g.Group("/submissions", jwt)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

// create files a proof of earnings for the authenticated user. Admins
// may file on behalf of another user.
func (api *submissionAPI) create(ctx echo.Context) error {
	var data submission.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if data.UserID == 0 || !ctxUsr.IsAdmin() {
		data.UserID = ctxUsr.ID
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

// query lists submissions. Non-admins only see their own.
func (api *submissionAPI) query(ctx echo.Context) error {
	filter := new(submission.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []submission.Submission{})
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		filter.UserID = ctxUsr.ID
	}

	subs, err := api.svc.Filter(*filter)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionAPI) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	sub, err := api.svc.GetByID(id)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting submission")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if sub.UserID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, sub)
}

// update changes a submission's status/amount/notes; a status change
// re-runs the income calculation through the saved hook.
func (api *submissionAPI) update(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data submission.UpdateSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubmission")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.Update(id, data)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionAPI) destroy(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	if err = api.svc.Delete(id); err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	return ctx.NoContent(http.StatusNoContent)
}
