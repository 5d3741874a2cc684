package http

import (
	"log/slog"
	"net/http"
	"time"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/application/session"
	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

var _ ServerInterface = (*Server)(nil)

// Server implements ServerInterface on top of the session manager and the
// application use cases.
type Server struct {
	sessions *session.Manager

	// Command handlers
	acceptOrderHandler     commands.AcceptOrderCommandHandler
	advanceStatusHandler   commands.AdvanceStatusCommandHandler
	confirmDeliveryHandler commands.ConfirmDeliveryCommandHandler

	// Query handlers, nil without a database
	getEarningsHandler       *queries.GetEarningsQueryHandler
	getCourierHistoryHandler *queries.GetCourierHistoryQueryHandler

	heartbeat time.Duration
	logger    *slog.Logger
}

// NewServer creates the HTTP server. Without query handlers earnings are
// computed from the open session and history is unavailable.
func NewServer(
	sessions *session.Manager,
	acceptOrderHandler commands.AcceptOrderCommandHandler,
	advanceStatusHandler commands.AdvanceStatusCommandHandler,
	confirmDeliveryHandler commands.ConfirmDeliveryCommandHandler,
	getEarningsHandler *queries.GetEarningsQueryHandler,
	getCourierHistoryHandler *queries.GetCourierHistoryQueryHandler,
	logger *slog.Logger,
) (*Server, error) {
	if sessions == nil {
		return nil, errs.NewValueIsRequiredError("sessions")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		sessions:                 sessions,
		acceptOrderHandler:       acceptOrderHandler,
		advanceStatusHandler:     advanceStatusHandler,
		confirmDeliveryHandler:   confirmDeliveryHandler,
		getEarningsHandler:       getEarningsHandler,
		getCourierHistoryHandler: getCourierHistoryHandler,
		heartbeat:                15 * time.Second,
		logger:                   logger.With("component", "http"),
	}, nil
}

// OpenSession handles POST /api/v1/couriers/{courierId}/session.
func (s *Server) OpenSession(ctx echo.Context, courierID string) error {
	id, err := kernel.IDFromString(courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	opened, err := s.sessions.Open(ctx.Request().Context(), id)
	if err != nil {
		return s.writeError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, Session{
		CourierID:   opened.Courier().ID().String(),
		DisplayName: opened.Courier().DisplayName(),
		Orders:      toOrders(opened.InitialOrders()),
	})
}

// CloseSession handles DELETE /api/v1/couriers/{courierId}/session.
func (s *Server) CloseSession(ctx echo.Context, courierID string) error {
	id, err := kernel.IDFromString(courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	if err = s.sessions.Close(ctx.Request().Context(), id); err != nil {
		return s.writeError(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// GetOrders handles GET /api/v1/couriers/{courierId}/orders.
func (s *Server) GetOrders(ctx echo.Context, courierID string) error {
	open, err := s.session(ctx, courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toOrders(open.Orders()))
}

// AcceptOrder handles POST /api/v1/couriers/{courierId}/orders/{orderId}/accept.
func (s *Server) AcceptOrder(ctx echo.Context, courierID, orderID string, params MutationParams) error {
	open, err := s.session(ctx, courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}
	id, err := kernel.IDFromString(orderID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	cmd, err := commands.NewAcceptOrderCommand(id)
	if err != nil {
		return s.writeError(ctx, err)
	}

	ack, err := s.acceptOrderHandler.Handle(ctx.Request().Context(), open, cmd)
	if err != nil {
		return s.writeError(ctx, err)
	}

	return s.writeMutation(ctx, open, id, ack, params)
}

// AdvanceStatus handles POST /api/v1/couriers/{courierId}/orders/{orderId}/status.
func (s *Server) AdvanceStatus(ctx echo.Context, courierID, orderID string, params MutationParams) error {
	var body AdvanceStatusRequest
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, Error{
			Code:    http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	open, err := s.session(ctx, courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}
	id, err := kernel.IDFromString(orderID)
	if err != nil {
		return s.writeError(ctx, err)
	}
	expected, err := order.ParseStatus(body.Expected)
	if err != nil {
		return s.writeError(ctx, err)
	}
	next, err := order.ParseStatus(body.Next)
	if err != nil {
		return s.writeError(ctx, err)
	}

	cmd, err := commands.NewAdvanceStatusCommand(id, expected, next)
	if err != nil {
		return s.writeError(ctx, err)
	}

	ack, err := s.advanceStatusHandler.Handle(ctx.Request().Context(), open, cmd)
	if err != nil {
		return s.writeError(ctx, err)
	}

	return s.writeMutation(ctx, open, id, ack, params)
}

// ConfirmDelivery handles POST /api/v1/couriers/{courierId}/orders/{orderId}/confirm.
func (s *Server) ConfirmDelivery(ctx echo.Context, courierID, orderID string, params MutationParams) error {
	var body ConfirmDeliveryRequest
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, Error{
			Code:    http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	open, err := s.session(ctx, courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}
	id, err := kernel.IDFromString(orderID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	cmd, err := commands.NewConfirmDeliveryCommand(id, body.Code)
	if err != nil {
		return s.writeError(ctx, err)
	}

	ack, err := s.confirmDeliveryHandler.Handle(ctx.Request().Context(), open, cmd)
	if err != nil {
		return s.writeError(ctx, err)
	}

	return s.writeMutation(ctx, open, id, ack, params)
}

// GetEarnings handles GET /api/v1/couriers/{courierId}/earnings.
func (s *Server) GetEarnings(ctx echo.Context, courierID string, params GetEarningsParams) error {
	id, err := kernel.IDFromString(courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	now := time.Now()
	if params.At != nil {
		now = *params.At
	}

	if s.getEarningsHandler == nil {
		open, sessionErr := s.sessions.Get(ctx.Request().Context(), id)
		if sessionErr != nil {
			return s.writeError(ctx, sessionErr)
		}
		return ctx.JSON(http.StatusOK, toEarnings(open.Earnings(now)))
	}

	query, err := queries.NewGetEarningsQuery(id, now)
	if err != nil {
		return s.writeError(ctx, err)
	}

	window, err := s.getEarningsHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toEarnings(window))
}

// GetHistory handles GET /api/v1/couriers/{courierId}/history.
func (s *Server) GetHistory(ctx echo.Context, courierID string, params GetHistoryParams) error {
	if s.getCourierHistoryHandler == nil {
		return s.writeError(ctx, errs.NewStoreUnavailableError("courier history", nil))
	}

	id, err := kernel.IDFromString(courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	var since time.Time
	if params.Since != nil {
		since = *params.Since
	}
	var limit uint64
	if params.Limit != nil && *params.Limit > 0 {
		limit = uint64(*params.Limit)
	}

	query, err := queries.NewGetCourierHistoryQuery(id, since, limit)
	if err != nil {
		return s.writeError(ctx, err)
	}

	history, err := s.getCourierHistoryHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toHistory(history))
}

func (s *Server) session(ctx echo.Context, courierID string) (*session.Session, error) {
	id, err := kernel.IDFromString(courierID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx.Request().Context(), id)
}

// writeMutation answers 202 with the optimistic view, or 200 once the store
// accepted the write when the caller asked to wait.
func (s *Server) writeMutation(
	ctx echo.Context,
	open *session.Session,
	orderID kernel.ID,
	ack *reconciler.Ack,
	params MutationParams,
) error {
	code := http.StatusAccepted
	response := Mutation{}

	if params.Wait != nil && *params.Wait {
		if err := ack.Wait(ctx.Request().Context()); err != nil {
			return s.writeError(ctx, err)
		}
		code = http.StatusOK
		response.Accepted = true
		response.Revision = ack.Revision()
	}

	if o, err := open.Order(orderID); err == nil {
		view := toOrder(o)
		response.Order = &view
	}

	return ctx.JSON(code, response)
}
