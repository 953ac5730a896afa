package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/user"
)

type auditAPI struct {
	svc     *audit.Service
	userSvc *user.Service
}

func registerAuditAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *audit.Service, userSvc *user.Service) {
	api := auditAPI{svc: svc, userSvc: userSvc}

	ag := g.Group("/audit", jwt, adminMiddleware())
	ag.GET("", api.query)
}

func (api *auditAPI) query(ctx echo.Context) error {
	page := 1
	if raw := ctx.QueryParam("page"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			page = p
		}
	}

	entries, total, err := api.svc.List(page)
	if err != nil {
		return errors.Wrap(err, "querying audit entries")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, AuditPageResponse{
		Page:     page,
		PageSize: audit.PageSize,
		Total:    total,
		Entries:  entries,
	})
}

type AuditPageResponse struct {
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
	Entries  []audit.Entry `json:"entries"`
}
