package payouts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"luckydrop/entity"
	"luckydrop/lib/api/cont"
	"luckydrop/lib/api/response"
	"luckydrop/lib/sl"
)

type Core interface {
	Payouts(ctx context.Context, status entity.PayoutStatus) ([]*entity.PayoutRecord, error)
	SettlePayout(ctx context.Context, id string, status entity.PayoutStatus) (*entity.PayoutRecord, error)
}

// List serves payout records filtered by the status query parameter,
// defaulting to pending; operators poll it for the disbursement queue.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.payouts")

		status := entity.PayoutStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = entity.PayoutPending
		}
		logger := log.With(
			mod,
			slog.String("status", string(status)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if status != entity.PayoutPending && status != entity.PayoutPaid && status != entity.PayoutFailed {
			logger.Error("invalid status filter")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Unknown payout status: %s", status)))
			return
		}

		records, err := handler.Payouts(r.Context(), status)
		if err != nil {
			logger.Error("list payouts", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("%v", err)))
			return
		}
		logger.Debug("payouts served", slog.Int("count", len(records)))

		render.JSON(w, r, response.Ok(records))
	}
}

// Settle moves a pending record to paid or failed on operator request.
func Settle(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.payouts")

		id := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("payout", id),
			slog.String("operator", cont.GetOperator(r.Context())),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var settle entity.PayoutSettle
		if err := render.Bind(r, &settle); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		record, err := handler.SettlePayout(r.Context(), id, settle.Status)
		if err != nil {
			logger.Error("settle payout", sl.Err(err))
			switch {
			case errors.Is(err, entity.ErrPayoutNotFound):
				render.Status(r, http.StatusNotFound)
			case errors.Is(err, entity.ErrPayoutSettled):
				render.Status(r, http.StatusConflict)
			default:
				render.Status(r, http.StatusBadRequest)
			}
			render.JSON(w, r, response.Error(fmt.Sprintf("%v", err)))
			return
		}
		logger.Info("payout settled", slog.String("result", string(record.Status)))

		render.JSON(w, r, response.Ok(record))
	}
}
