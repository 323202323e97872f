package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskdeck/taskdeck-go/internal/middleware"
)

// NewRouter assembles the API route tree: public auth routes behind
// the IP rate limiter, task routes behind JWT auth.
func NewRouter(auth *AuthHandler, tasks *TaskHandler, jwtSecret string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(5, 10))
		r.Post("/signup", auth.HandleSignup)
		r.Post("/login", auth.HandleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtSecret))
		r.Get("/me", auth.HandleMe)

		r.Get("/tasks", tasks.HandleList)
		r.Post("/tasks", tasks.HandleCreate)
		r.Get("/tasks/{id}", tasks.HandleGet)
		r.Put("/tasks/{id}", tasks.HandleUpdate)
		r.Patch("/tasks/{id}/toggle", tasks.HandleToggle)
		r.Delete("/tasks/{id}", tasks.HandleDelete)
	})

	return r
}
