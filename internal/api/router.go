package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/ecoleta/internal/geo"
	"github.com/erazemk/ecoleta/internal/model"
)

// Options configures the API router.
type Options struct {
	// JWTSecret signs curator sessions.
	JWTSecret string
	// PublicURL is the externally reachable base URL, without a trailing slash.
	PublicURL string
	// Geo resolves regions and localities. Region routes are not registered
	// when it is nil.
	Geo geo.Lookup
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: opts.JWTSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, PublicURL: opts.PublicURL}
	pointsHandler := &PointsHandler{DB: db}

	authMW := AuthMiddleware(opts.JWTSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public catalog.
	mux.HandleFunc("GET /items", itemsHandler.List)
	mux.HandleFunc("GET /items/{id}/image", itemsHandler.GetImage)
	mux.HandleFunc("POST /points", pointsHandler.Create)
	mux.HandleFunc("GET /points", pointsHandler.List)
	mux.HandleFunc("GET /points/{id}", pointsHandler.Get)

	if opts.Geo != nil {
		regionsHandler := &RegionsHandler{Geo: opts.Geo}
		mux.HandleFunc("GET /regions", regionsHandler.List)
		mux.HandleFunc("GET /regions/{uf}/localities", regionsHandler.Localities)
	}

	// Auth.
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.Handle("POST /auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Curation: manager+ edits, admin deletes.
	mux.Handle("PUT /items/{id}/image", authMW(requireManager(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("PUT /points/{id}", authMW(requireManager(http.HandlerFunc(pointsHandler.Update))))
	mux.Handle("DELETE /points/{id}", authMW(requireAdmin(http.HandlerFunc(pointsHandler.Delete))))

	// Users (admin only).
	mux.Handle("GET /users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("DELETE /users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
