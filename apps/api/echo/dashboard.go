package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mapato/core/account"
	"github.com/trezcool/mapato/core/notification"
	"github.com/trezcool/mapato/core/user"
)

type dashboardAPI struct {
	acctSvc  *account.Service
	notifSvc *notification.Service
	userSvc  *user.Service
}

func registerDashboardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	acctSvc *account.Service,
	notifSvc *notification.Service,
	userSvc *user.Service,
) {
	api := dashboardAPI{acctSvc: acctSvc, notifSvc: notifSvc, userSvc: userSvc}

	dg := g.Group("/dashboard", jwt)
	dg.GET("/assignments", api.assignments)
	dg.GET("/notifications", api.notifications)
	dg.GET("/notifications/unread-count", api.unreadCount)
	dg.POST("/notifications/mark-read", api.markRead)
}

// assignments lists the accounts currently held by the authenticated
// user.
func (api *dashboardAPI) assignments(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	assigns, err := api.acctSvc.UserAssignments(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying user assignments")
	}
	if assigns == nil {
		assigns = []account.UserAssignment{}
	}
	return ctx.JSON(http.StatusOK, assigns)
}

func (api *dashboardAPI) notifications(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notifs, err := api.notifSvc.ListForUser(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *dashboardAPI) unreadCount(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	count, err := api.notifSvc.UnreadCount(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

// markRead marks the given notifications as read; an empty id list
// marks everything.
func (api *dashboardAPI) markRead(ctx echo.Context) error {
	var data MarkReadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkReadRequest")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.notifSvc.MarkRead(ctxUsr.ID, data.IDs...); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	UnreadCountResponse struct {
		Count int `json:"count"`
	}

	MarkReadRequest struct {
		IDs []string `json:"ids"`
	}
)
