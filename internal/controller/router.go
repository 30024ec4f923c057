package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(c.requestMetricsMw)
	r.Use(cors.AllowAll().Handler)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/search", c.search)
		r.Get("/audio/{video-id}", c.streamAudio)

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", c.createRoom)
			r.Route("/{room-id}", func(r chi.Router) {
				r.Get("/", c.getRoom)
				r.Post("/join", c.joinRoom)
				r.Post("/leave", c.leaveRoom)

				r.Route("/queue", func(r chi.Router) {
					r.Get("/", c.getQueue)
					r.Post("/", c.addSong)
					r.Post("/reorder", c.reorderQueue)
					r.Delete("/{song-id}", c.removeSong)
				})

				r.Route("/playback", func(r chi.Router) {
					r.Post("/", c.updatePlayback)
					r.Post("/skip", c.skipToNext)
					r.Post("/seek", c.seek)
				})
			})
		})

		r.Get("/users/{user-id}/room", c.getUserRoom)

		r.Get("/ws/{room-id}", c.subscribe)
	})

	return r
}
