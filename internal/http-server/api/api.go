package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"luckydrop/internal/config"
	"luckydrop/internal/http-server/handlers/errors"
	"luckydrop/internal/http-server/handlers/payouts"
	"luckydrop/internal/http-server/handlers/pots"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"luckydrop/internal/http-server/middleware/authenticate"
	"luckydrop/internal/http-server/middleware/timeout"
	"luckydrop/lib/api/response"
	"luckydrop/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

// Handler is the operations surface exposed over HTTP; the core engine
// satisfies it.
type Handler interface {
	pots.Core
	payouts.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(nil))
	})

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, conf.Listen.OpsToken))
		rootApi.Route("/pots", func(p chi.Router) {
			p.Get("/current", pots.Current(log, handler))
			p.Get("/{date}", pots.ByDate(log, handler))
			p.Post("/{date}/close", pots.Close(log, handler))
			p.Post("/{date}/reveal", pots.Reveal(log, handler))
		})
		rootApi.Route("/payouts", func(p chi.Router) {
			p.Get("/", payouts.List(log, handler))
			p.Post("/{id}/settle", payouts.Settle(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
