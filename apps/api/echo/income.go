package echoapi

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/user"
)

type incomeAPI struct {
	svc     *split.Service
	userSvc *user.Service
}

func registerIncomeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *split.Service, userSvc *user.Service) {
	api := incomeAPI{svc: svc, userSvc: userSvc}

	ig := g.Group("/income", jwt)
	ig.GET("/summary", api.summary)
	ig.GET("/history", api.history)
	ig.GET("/history.csv", api.exportHistory)
	ig.GET("/monthly", api.monthly)
}

// targetUserID resolves which user's income is requested; admins may
// pass ?user_id to read another user's figures.
func (api *incomeAPI) targetUserID(ctx echo.Context) (int, error) {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return 0, errors.Wrap(err, "getting context user")
	}
	if raw := ctx.QueryParam("user_id"); raw != "" && ctxUsr.IsAdmin() {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			return 0, errHttpNotFound
		}
		return id, nil
	}
	return ctxUsr.ID, nil
}

func (api *incomeAPI) summary(ctx echo.Context) error {
	userID, err := api.targetUserID(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(userID)
	if err != nil {
		return errors.Wrap(err, "summing income")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *incomeAPI) history(ctx echo.Context) error {
	userID, err := api.targetUserID(ctx)
	if err != nil {
		return err
	}
	rows, err := api.svc.History(userID)
	if err != nil {
		return errors.Wrap(err, "querying income history")
	}
	if rows == nil {
		rows = []split.IncomeRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *incomeAPI) monthly(ctx echo.Context) error {
	userID, err := api.targetUserID(ctx)
	if err != nil {
		return err
	}
	months, err := api.svc.Monthly(userID)
	if err != nil {
		return errors.Wrap(err, "grouping monthly income")
	}
	if months == nil {
		months = []split.MonthlyIncome{}
	}
	return ctx.JSON(http.StatusOK, months)
}

func (api *incomeAPI) exportHistory(ctx echo.Context) error {
	userID, err := api.targetUserID(ctx)
	if err != nil {
		return err
	}
	rows, err := api.svc.History(userID)
	if err != nil {
		return errors.Wrap(err, "querying income history")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="income-history.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err = w.Write([]string{"recorded_at", "title", "role", "income", "status"}); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, row := range rows {
		record := []string{
			row.RecordedAt.Format("2006-01-02 15:04:05"),
			row.TitleName,
			row.Role,
			row.Income.StringFixed(2),
			row.SubmissionStatus,
		}
		if err = w.Write(record); err != nil {
			return errors.Wrap(err, "writing csv record")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing csv")
}
