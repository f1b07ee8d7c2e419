package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/quickcourt/quickcourt/internal/api/apiutil"
	"github.com/quickcourt/quickcourt/internal/api/authz"
	"github.com/quickcourt/quickcourt/internal/config"
	"github.com/quickcourt/quickcourt/internal/db"
	"github.com/quickcourt/quickcourt/internal/ratelimit"
)

var (
	queries     *db.Queries
	appConfig   *config.Config
	limiter     *ratelimit.Limiter
	initOnce    sync.Once
	trustProxy  bool
	phoneRegion = defaultPhoneRegion
)

func InitHandlers(database *db.DB, cfg *config.Config) {
	initOnce.Do(func() {
		queries = database.Queries
		appConfig = cfg
		limiter = ratelimit.New(&ratelimit.Config{
			LoginMaxAttempts: cfg.RateLimit.LoginMaxAttempts,
			LoginLockout:     cfg.RateLimit.LoginLockout,
		})
		trustProxy = cfg.App.TrustProxy
		if cfg.App.PhoneRegion != "" {
			phoneRegion = cfg.App.PhoneRegion
		}
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  db.User `json:"user"`
	Token string  `json:"token"`
}

// POST /api/v1/auth/register
func HandleRegister(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req registerRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	params, err := validateRegister(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		http.Error(w, "Failed to register", http.StatusInternalServerError)
		return
	}
	params.PasswordHash = hash

	user, err := queries.CreateUser(r.Context(), params)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			http.Error(w, "An account with that email already exists", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Msg("Failed to create user")
		http.Error(w, "Failed to register", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("User registered")
	writeSession(w, r, user, http.StatusCreated)
}

func validateRegister(req registerRequest) (db.CreateUserParams, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return db.CreateUserParams{}, apiutil.FieldError{Field: "name", Reason: "is required"}
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return db.CreateUserParams{}, apiutil.FieldError{Field: "email", Reason: "must be a valid email address"}
	}
	if err := checkPasswordPolicy(req.Password); err != nil {
		return db.CreateUserParams{}, apiutil.FieldError{Field: "password", Reason: err.Error()}
	}
	phone, err := NormalizePhone(req.Phone, phoneRegion)
	if err != nil {
		return db.CreateUserParams{}, apiutil.FieldError{Field: "phone", Reason: "must be a valid phone number"}
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = db.RoleUser
	case db.RoleUser, db.RoleOwner:
	default:
		return db.CreateUserParams{}, apiutil.FieldError{Field: "role", Reason: "must be user or owner"}
	}

	return db.CreateUserParams{
		Name:  name,
		Email: email,
		Phone: phone,
		Role:  role,
	}, nil
}

// POST /api/v1/auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	ip := ratelimit.GetClientIP(r, trustProxy)
	if result := limiter.CheckLogin(email, ip); !result.Allowed {
		ratelimit.LogRateLimitExceeded(r.Context(), "login", email, ip, result.Reason)
		w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
		http.Error(w, "Too many login attempts. Try again later.", http.StatusTooManyRequests)
		return
	}

	user, err := queries.GetUserByEmail(r.Context(), email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to load user")
		http.Error(w, "Failed to log in", http.StatusInternalServerError)
		return
	}
	if err != nil || !VerifyPassword(user.PasswordHash, req.Password) {
		if limiter.RecordLoginFailure(email, ip) {
			ratelimit.LogRateLimitExceeded(r.Context(), "login", email, ip, "lockout_started")
		}
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	limiter.ResetLogin(email)
	logger.Info().Int64("user_id", user.ID).Msg("User logged in")
	writeSession(w, r, user, http.StatusOK)
}

// POST /api/v1/auth/logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/me
func HandleMe(w http.ResponseWriter, r *http.Request) {
	authUser := apiutil.RequireUser(w, r)
	if authUser == nil {
		return
	}

	user, err := queries.GetUserByID(r.Context(), authUser.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ClearSession(w)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("user_id", authUser.ID).Msg("Failed to load user")
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, user); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write user response")
	}
}

func writeSession(w http.ResponseWriter, r *http.Request, user db.User, status int) {
	logger := log.Ctx(r.Context())
	authUser := &authz.AuthUser{ID: user.ID, Email: user.Email, Role: user.Role}

	token, err := SetAuthCookie(w, authUser)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to set auth cookie")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, status, sessionResponse{User: user, Token: token}); err != nil {
		logger.Error().Err(err).Msg("Failed to write session response")
	}
}
