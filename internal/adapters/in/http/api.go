package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface is one method per operation of openapi.json.
type ServerInterface interface {
	// (POST /api/v1/couriers/{courierId}/session)
	OpenSession(ctx echo.Context, courierID string) error
	// (DELETE /api/v1/couriers/{courierId}/session)
	CloseSession(ctx echo.Context, courierID string) error
	// (GET /api/v1/couriers/{courierId}/orders)
	GetOrders(ctx echo.Context, courierID string) error
	// (GET /api/v1/couriers/{courierId}/feed)
	GetFeed(ctx echo.Context, courierID string) error
	// (POST /api/v1/couriers/{courierId}/orders/{orderId}/accept)
	AcceptOrder(ctx echo.Context, courierID, orderID string, params MutationParams) error
	// (POST /api/v1/couriers/{courierId}/orders/{orderId}/status)
	AdvanceStatus(ctx echo.Context, courierID, orderID string, params MutationParams) error
	// (POST /api/v1/couriers/{courierId}/orders/{orderId}/confirm)
	ConfirmDelivery(ctx echo.Context, courierID, orderID string, params MutationParams) error
	// (GET /api/v1/couriers/{courierId}/earnings)
	GetEarnings(ctx echo.Context, courierID string, params GetEarningsParams) error
	// (GET /api/v1/couriers/{courierId}/history)
	GetHistory(ctx echo.Context, courierID string, params GetHistoryParams) error
}

// ServerInterfaceWrapper binds path and query parameters before calling
// the handler.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) OpenSession(ctx echo.Context) error {
	courierID, err := bindPath(ctx, "courierId")
	if err != nil {
		return err
	}
	return w.Handler.OpenSession(ctx, courierID)
}

func (w *ServerInterfaceWrapper) CloseSession(ctx echo.Context) error {
	courierID, err := bindPath(ctx, "courierId")
	if err != nil {
		return err
	}
	return w.Handler.CloseSession(ctx, courierID)
}

func (w *ServerInterfaceWrapper) GetOrders(ctx echo.Context) error {
	courierID, err := bindPath(ctx, "courierId")
	if err != nil {
		return err
	}
	return w.Handler.GetOrders(ctx, courierID)
}

func (w *ServerInterfaceWrapper) GetFeed(ctx echo.Context) error {
	courierID, err := bindPath(ctx, "courierId")
	if err != nil {
		return err
	}
	return w.Handler.GetFeed(ctx, courierID)
}

func (w *ServerInterfaceWrapper) AcceptOrder(ctx echo.Context) error {
	courierID, orderID, params, err := bindMutation(ctx)
	if err != nil {
		return err
	}
	return w.Handler.AcceptOrder(ctx, courierID, orderID, params)
}

func (w *ServerInterfaceWrapper) AdvanceStatus(ctx echo.Context) error {
	courierID, orderID, params, err := bindMutation(ctx)
	if err != nil {
		return err
	}
	return w.Handler.AdvanceStatus(ctx, courierID, orderID, params)
}

func (w *ServerInterfaceWrapper) ConfirmDelivery(ctx echo.Context) error {
	courierID, orderID, params, err := bindMutation(ctx)
	if err != nil {
		return err
	}
	return w.Handler.ConfirmDelivery(ctx, courierID, orderID, params)
}

func (w *ServerInterfaceWrapper) GetEarnings(ctx echo.Context) error {
	courierID, err := bindPath(ctx, "courierId")
	if err != nil {
		return err
	}

	var params GetEarningsParams
	if err = runtime.BindQueryParameter("form", true, false, "at", ctx.QueryParams(), &params.At); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter at: %s", err))
	}

	return w.Handler.GetEarnings(ctx, courierID, params)
}

func (w *ServerInterfaceWrapper) GetHistory(ctx echo.Context) error {
	courierID, err := bindPath(ctx, "courierId")
	if err != nil {
		return err
	}

	var params GetHistoryParams
	if err = runtime.BindQueryParameter("form", true, false, "since", ctx.QueryParams(), &params.Since); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter since: %s", err))
	}
	if err = runtime.BindQueryParameter("form", true, false, "limit", ctx.QueryParams(), &params.Limit); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter limit: %s", err))
	}

	return w.Handler.GetHistory(ctx, courierID, params)
}

func bindPath(ctx echo.Context, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, ctx.Param(name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return value, nil
}

func bindMutation(ctx echo.Context) (string, string, MutationParams, error) {
	var params MutationParams

	courierID, err := bindPath(ctx, "courierId")
	if err != nil {
		return "", "", params, err
	}
	orderID, err := bindPath(ctx, "orderId")
	if err != nil {
		return "", "", params, err
	}
	if err = runtime.BindQueryParameter("form", true, false, "wait", ctx.QueryParams(), &params.Wait); err != nil {
		return "", "", params, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Invalid format for parameter wait: %s", err))
	}

	return courierID, orderID, params, nil
}

// EchoRouter is the part of *echo.Echo and *echo.Group used for
// registration.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds every operation of the API to router.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.POST("/api/v1/couriers/:courierId/session", wrapper.OpenSession)
	router.DELETE("/api/v1/couriers/:courierId/session", wrapper.CloseSession)
	router.GET("/api/v1/couriers/:courierId/orders", wrapper.GetOrders)
	router.GET("/api/v1/couriers/:courierId/feed", wrapper.GetFeed)
	router.POST("/api/v1/couriers/:courierId/orders/:orderId/accept", wrapper.AcceptOrder)
	router.POST("/api/v1/couriers/:courierId/orders/:orderId/status", wrapper.AdvanceStatus)
	router.POST("/api/v1/couriers/:courierId/orders/:orderId/confirm", wrapper.ConfirmDelivery)
	router.GET("/api/v1/couriers/:courierId/earnings", wrapper.GetEarnings)
	router.GET("/api/v1/couriers/:courierId/history", wrapper.GetHistory)
}
