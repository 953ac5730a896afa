package echoapi

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/account"
	"github.com/trezcool/mapato/core/user"
)

type accountAPI struct {
	svc     *account.Service
	userSvc *user.Service
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *account.Service, userSvc *user.Service) {
	api := accountAPI{svc: svc, userSvc: userSvc}

	ag := g.Group("/accounts", jwt, adminMiddleware())
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/export.csv", api.export)
	ag.GET("/logs", api.queryAllLogs)
	ag.GET("/field-labels", api.getFieldLabels)
	ag.PUT("/field-labels", api.saveFieldLabels)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/assign", api.assign)
	ag.POST("/:id/reassign", api.reassign)
	ag.PUT("/:id/split", api.setSplit)
	ag.GET("/:id/logs", api.queryLogs)
}

func (api *accountAPI) actorID(ctx echo.Context) (int, error) {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return 0, errors.Wrap(err, "getting context user")
	}
	return ctxUsr.ID, nil
}

func accountID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

func (api *accountAPI) create(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	acct, err := api.svc.Create(actor, data)
	if err != nil {
		return errors.Wrap(err, "creating account")
	}
	return ctx.JSON(http.StatusCreated, acct)
}

func (api *accountAPI) query(ctx echo.Context) error {
	accts, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accts == nil {
		accts = []account.Account{}
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *accountAPI) retrieve(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	acct, err := api.svc.GetByID(id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountAPI) update(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}

	var data account.UpdateAccount
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccount")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	actor, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	acct, err := api.svc.Update(actor, id, data)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountAPI) destroy(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(actor, id); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountAPI) assign(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}

	var data account.AssignAccount
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignAccount")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	actor, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	asgn, err := api.svc.Assign(actor, id, data)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "assigning account")
	}
	return ctx.JSON(http.StatusCreated, asgn)
}

func (api *accountAPI) reassign(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}

	var data account.AssignAccount
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignAccount")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	actor, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	asgn, err := api.svc.Reassign(actor, id, data)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "reassigning account")
	}
	return ctx.JSON(http.StatusCreated, asgn)
}

func (api *accountAPI) setSplit(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}

	var data account.UpdateSplit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSplit")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	actor, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	acct, err := api.svc.SetSplit(actor, id, data)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting account split")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountAPI) queryLogs(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	logs, err := api.svc.Logs(id)
	if err != nil {
		return errors.Wrap(err, "querying assignment logs")
	}
	if logs == nil {
		logs = []account.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *accountAPI) queryAllLogs(ctx echo.Context) error {
	logs, err := api.svc.Logs(0)
	if err != nil {
		return errors.Wrap(err, "querying assignment logs")
	}
	if logs == nil {
		logs = []account.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *accountAPI) getFieldLabels(ctx echo.Context) error {
	labels, err := api.svc.GetFieldLabels()
	if err != nil {
		return errors.Wrap(err, "getting field labels")
	}
	return ctx.JSON(http.StatusOK, labels)
}

func (api *accountAPI) saveFieldLabels(ctx echo.Context) error {
	var data account.FieldLabels
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FieldLabels")
	}

	actor, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.SaveFieldLabels(actor, data); err != nil {
		return errors.Wrap(err, "saving field labels")
	}
	return ctx.JSON(http.StatusOK, data)
}

// export writes the account list as CSV, custom fields included.
// Passwords never leave the server.
func (api *accountAPI) export(ctx echo.Context) error {
	accts, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	labels, err := api.svc.GetFieldLabels()
	if err != nil {
		return errors.Wrap(err, "getting field labels")
	}

	header := []string{"platform", "username", "email", "type", "first_owner_split", "current_owner_split"}
	for _, label := range []string{
		labels.CustomField1, labels.CustomField2, labels.CustomField3,
		labels.CustomField4, labels.CustomField5,
	} {
		if label == "" {
			label = "custom"
		}
		header = append(header, label)
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="accounts.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err = w.Write(header); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, acct := range accts {
		record := []string{
			acct.Platform, acct.Username, acct.Email, acct.Type,
			acct.SplitFirstOwner.StringFixed(2), acct.SplitCurrentOwner.StringFixed(2),
			acct.CustomField1, acct.CustomField2, acct.CustomField3,
			acct.CustomField4, acct.CustomField5,
		}
		if err = w.Write(record); err != nil {
			return errors.Wrap(err, "writing csv record")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing csv")
}
