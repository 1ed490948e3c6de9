package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		r.Post("/rooms", apiHandler.CreateRoomHandler)
		r.Get("/rooms", apiHandler.ListRoomsHandler)

		r.Route("/rooms/{room}", func(r chi.Router) {
			r.Delete("/", apiHandler.DeleteRoomHandler)

			r.Post("/documents", apiHandler.AddDocumentHandler)
			r.Get("/documents", apiHandler.ListDocumentsHandler)
			r.Get("/documents/{documentID}", apiHandler.GetDocumentHandler)
			r.Put("/documents/{documentID}", apiHandler.UpdateDocumentHandler)
			r.Delete("/documents/{documentID}", apiHandler.RemoveDocumentHandler)

			r.Post("/chunks/refresh", apiHandler.RefreshChunksHandler)

			r.Post("/queries", apiHandler.AnswerQueryHandler)
			r.Get("/queries", apiHandler.ListTurnsHandler)
			r.Put("/queries/{turnID}", apiHandler.EditQueryHandler)
		})
	})

	return r
}
