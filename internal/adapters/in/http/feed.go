package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	eventOrders  = "orders"
	eventRevoked = "revoked"
	eventClosed  = "closed"
)

// GetFeed handles GET /api/v1/couriers/{courierId}/feed. It streams the
// visible list as server-sent events: the current list first, then one
// event per change. The stream ends with a revoked or closed event when
// the session ends.
func (s *Server) GetFeed(ctx echo.Context, courierID string) error {
	open, err := s.session(ctx, courierID)
	if err != nil {
		return s.writeError(ctx, err)
	}

	updates, cancel := open.Watch()
	defer cancel()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err = writeEvent(res, eventOrders, toOrders(open.Orders())); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	reqCtx := ctx.Request().Context()
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case <-heartbeat.C:
			if _, err = fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case orders, ok := <-updates:
			if !ok {
				event := eventClosed
				if open.Revoked() {
					event = eventRevoked
				}
				_ = writeEvent(res, event, struct{}{})
				return nil
			}
			if err = writeEvent(res, eventOrders, toOrders(orders)); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(res *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
