package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/staywatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/staywatch/internal/httpserver/handlers"
)

func init() { RegisterOperator(registerOperator) }

func registerOperator(r chi.Router, d deps.Deps) {
	r.Get("/status", handlers.Status(d))
	r.Post("/run", handlers.Run(d))
}
