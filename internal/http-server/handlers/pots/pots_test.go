package pots_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luckydrop/entity"
	"luckydrop/internal/http-server/handlers/pots"
)

type stubCore struct {
	pot       *entity.Pot
	closeErr  error
	revealErr error
}

func (s *stubCore) CurrentPot(_ context.Context) (*entity.Pot, error) {
	if s.pot == nil {
		return nil, entity.ErrPotNotFound
	}
	return s.pot, nil
}

func (s *stubCore) PotByDate(_ context.Context, date string) (*entity.Pot, error) {
	if s.pot == nil || s.pot.Date != date {
		return nil, entity.ErrPotNotFound
	}
	return s.pot, nil
}

func (s *stubCore) ClosePot(_ context.Context, _ string) error {
	if s.closeErr != nil {
		return s.closeErr
	}
	s.pot.Status = entity.PotClosed
	return nil
}

func (s *stubCore) RevealPot(_ context.Context, _ string) error {
	if s.revealErr != nil {
		return s.revealErr
	}
	s.pot.Status = entity.PotRevealed
	return nil
}

func testPot() *entity.Pot {
	return &entity.Pot{
		Id:        "pot-1",
		Date:      "2026-08-29",
		Status:    entity.PotOpen,
		MaxUsers:  30,
		StartTime: time.Date(2026, 8, 29, 11, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 8, 29, 13, 30, 0, 0, time.UTC),
	}
}

func newRouter(handler pots.Core) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Get("/pots/current", pots.Current(log, handler))
	r.Get("/pots/{date}", pots.ByDate(log, handler))
	r.Post("/pots/{date}/close", pots.Close(log, handler))
	r.Post("/pots/{date}/reveal", pots.Reveal(log, handler))
	return r
}

func TestCurrent(t *testing.T) {
	router := newRouter(&stubCore{pot: testPot()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pots/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pot-1"`)
	assert.Contains(t, rec.Body.String(), `"open"`)
}

func TestCurrentNotFound(t *testing.T) {
	router := newRouter(&stubCore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pots/current", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestByDate(t *testing.T) {
	router := newRouter(&stubCore{pot: testPot()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pots/2026-08-29", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pots/2026-01-01", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClose(t *testing.T) {
	stub := &stubCore{pot: testPot()}
	router := newRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pots/2026-08-29/close", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.PotClosed, stub.pot.Status)
	assert.Contains(t, rec.Body.String(), `"closed"`)
}

func TestCloseConflict(t *testing.T) {
	stub := &stubCore{pot: testPot(), closeErr: entity.ErrAlreadyClosed}
	router := newRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pots/2026-08-29/close", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRevealStillOpen(t *testing.T) {
	stub := &stubCore{pot: testPot(), revealErr: entity.ErrPotStillOpen}
	router := newRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pots/2026-08-29/reveal", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
