package pots

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
	"luckydrop/lib/api/response"
	"luckydrop/lib/sl"
)

type Core interface {
	CurrentPot(ctx context.Context) (*entity.Pot, error)
	PotByDate(ctx context.Context, date string) (*entity.Pot, error)
	ClosePot(ctx context.Context, potId string) error
	RevealPot(ctx context.Context, potId string) error
}

func Current(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.pots")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		pot, err := handler.CurrentPot(r.Context())
		if err != nil {
			logger.Error("get current pot", sl.Err(err))
			renderError(w, r, err)
			return
		}
		logger.Debug("current pot served", sl.Pot(pot.Id))

		render.JSON(w, r, response.Ok(pot))
	}
}

func ByDate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.pots")

		date := chi.URLParam(r, "date")
		logger := log.With(
			mod,
			slog.String("date", date),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		pot, err := handler.PotByDate(r.Context(), date)
		if err != nil {
			logger.Error("get pot", sl.Err(err))
			renderError(w, r, err)
			return
		}
		logger.Debug("pot served", sl.Pot(pot.Id))

		render.JSON(w, r, response.Ok(pot))
	}
}

func Close(log *slog.Logger, handler Core) http.HandlerFunc {
	return transition(log, "close", handler.PotByDate, handler.ClosePot)
}

func Reveal(log *slog.Logger, handler Core) http.HandlerFunc {
	return transition(log, "reveal", handler.PotByDate, handler.RevealPot)
}

// transition resolves {date} to a pot and applies a state change to it.
// Close and Reveal differ only in the change applied.
func transition(
	log *slog.Logger,
	action string,
	lookup func(ctx context.Context, date string) (*entity.Pot, error),
	apply func(ctx context.Context, potId string) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.pots")

		date := chi.URLParam(r, "date")
		logger := log.With(
			mod,
			slog.String("action", action),
			slog.String("date", date),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		pot, err := lookup(r.Context(), date)
		if err != nil {
			logger.Error("get pot", sl.Err(err))
			renderError(w, r, err)
			return
		}
		logger = logger.With(sl.Pot(pot.Id))

		if err = apply(r.Context(), pot.Id); err != nil {
			logger.Error("apply transition", sl.Err(err))
			renderError(w, r, err)
			return
		}
		logger.Info("pot transition applied")

		pot, err = lookup(r.Context(), date)
		if err != nil {
			logger.Error("reload pot", sl.Err(err))
			renderError(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(pot))
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entity.ErrPotNotFound):
		render.Status(r, http.StatusNotFound)
	case errors.Is(err, entity.ErrAlreadyClosed),
		errors.Is(err, entity.ErrAlreadyRevealed),
		errors.Is(err, entity.ErrPotStillOpen):
		render.Status(r, http.StatusConflict)
	default:
		render.Status(r, http.StatusBadRequest)
	}
	render.JSON(w, r, response.Error(fmt.Sprintf("%v", err)))
}
