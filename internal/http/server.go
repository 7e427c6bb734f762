package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/auth"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/config"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/crypto"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/model"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/progress"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/repository"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Store is what the handlers need from the repository.
type Store interface {
	progress.Store

	CreateUser(ctx context.Context, user model.User) error
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserByLogin(ctx context.Context, login string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, username string, update repository.UserUpdate, now time.Time) (model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, now time.Time) error
	UpdateUserRole(ctx context.Context, username, role string, now time.Time) (model.User, error)
	UpdateUserActive(ctx context.Context, username string, active bool, now time.Time) (model.User, error)
	DeleteUser(ctx context.Context, username string) (bool, error)
	RecordLogin(ctx context.Context, userID string, now time.Time) (model.User, error)
	CountUsers(ctx context.Context) (int, error)
	CountUsersByRole(ctx context.Context, role string) (int, error)
	CountActiveUsers(ctx context.Context) (int, error)
	CountAllCompletedLessons(ctx context.Context) (int, error)
}

type Server struct {
	cfg     config.Config
	store   Store
	tracker *progress.Tracker
	redis   *redis.Client
}

func NewServer(cfg config.Config, store Store, tracker *progress.Tracker, redisClient *redis.Client) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
		redis:   redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/verify", s.handleVerify)

	r.With(s.authMiddleware).Post("/progress", s.handleReportProgress)
	r.With(s.authMiddleware).Get("/progress", s.handleGetProgress)

	r.Route("/users", func(r chi.Router) {
		r.With(s.authMiddleware, s.requireAdmin).Get("/", s.handleListUsers)
		r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateUser)
		r.With(s.authMiddleware).Get("/me", s.handleGetMe)
		r.With(s.authMiddleware).Put("/me/password", s.handleChangePassword)
		r.With(s.authMiddleware).Get("/{username}", s.handleGetUser)
		r.With(s.authMiddleware).Put("/{username}/profile", s.handleUpdateProfile)
		r.With(s.authMiddleware, s.requireAdmin).Patch("/{username}/role", s.handleUpdateRole)
		r.With(s.authMiddleware, s.requireAdmin).Patch("/{username}/active", s.handleUpdateActive)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/{username}", s.handleDeleteUser)
	})

	r.With(s.authMiddleware, s.requireAdmin).Get("/admin/stats", s.handleAdminStats)

	return r
}

type userResponse struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      *string    `json:"firstName"`
	LastName       *string    `json:"lastName"`
	Role           string     `json:"role"`
	Active         bool       `json:"active"`
	EnrollmentDate time.Time  `json:"enrollmentDate"`
	FirstLogin     *time.Time `json:"firstLogin"`
	LastLogin      *time.Time `json:"lastLogin"`
	LastActivity   *time.Time `json:"lastActivity"`
	SessionCount   int        `json:"sessionCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func mapUserResponse(user model.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Role:           user.Role,
		Active:         user.Active,
		EnrollmentDate: user.EnrollmentDate,
		FirstLogin:     user.FirstLogin,
		LastLogin:      user.LastLogin,
		LastActivity:   user.LastActivity,
		SessionCount:   user.SessionCount,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

type progressResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ModuleID    string     `json:"moduleId"`
	LessonID    string     `json:"lessonId"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	TimeSpent   *float64   `json:"timeSpent"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func mapProgressResponse(p model.LessonProgress) progressResponse {
	return progressResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		ModuleID:    p.ModuleID,
		LessonID:    p.LessonID,
		Completed:   p.Completed,
		CompletedAt: p.CompletedAt,
		TimeSpent:   p.TimeSpent,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapProgressResponses(records []model.LessonProgress) []progressResponse {
	resp := make([]progressResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, mapProgressResponse(record))
	}
	return resp
}

type registerRequest struct {
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	EnrollmentDate *string `json:"enrollmentDate,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	user, errCode := s.buildNewUser(req)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeStoreError(w, err)
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"user":  mapUserResponse(user),
	})
}

// buildNewUser validates the registration payload and shapes the user
// record shared by self-registration and admin creation.
func (s *Server) buildNewUser(req registerRequest) (model.User, string) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return model.User{}, "missing_fields"
	}
	if !emailPattern.MatchString(req.Email) {
		return model.User{}, "invalid_email"
	}
	if len(req.Password) < minPasswordLength {
		return model.User{}, "password_too_short"
	}

	now := time.Now().UTC()
	enrollment := now
	if req.EnrollmentDate != nil && *req.EnrollmentDate != "" {
		parsed, err := time.Parse(time.RFC3339, *req.EnrollmentDate)
		if err != nil {
			return model.User{}, "invalid_enrollment_date"
		}
		enrollment = parsed.UTC()
	}

	hash, err := crypto.HashPasswordCost(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, "password_hash_failed"
	}

	return model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           model.RoleStudent,
		Active:         true,
		EnrollmentDate: enrollment,
		SessionCount:   0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, ""
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByLogin(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeServerError(w, err)
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	if !user.Active {
		writeError(w, http.StatusForbidden, "account_disabled")
		return
	}

	user, err = s.store.RecordLogin(r.Context(), user.ID, time.Now().UTC())
	if err != nil {
		writeServerError(w, err)
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  mapUserResponse(user),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	// Best effort: without redis the token simply ages out.
	if s.redis != nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			_ = s.redis.Set(r.Context(), denylistKey(token), "1", remaining).Err()
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeServerError(w, err)
		return
	}
	if !user.Active {
		writeError(w, http.StatusUnauthorized, "account_disabled")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": mapUserResponse(user)})
}

type reportProgressRequest struct {
	ModuleID  string   `json:"moduleId"`
	LessonID  string   `json:"lessonId"`
	Completed *bool    `json:"completed,omitempty"`
	TimeSpent *float64 `json:"timeSpent,omitempty"`
}

func (s *Server) handleReportProgress(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req reportProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	record, err := s.tracker.Record(r.Context(), repository.ProgressUpdate{
		UserID:    claims.UserID,
		ModuleID:  req.ModuleID,
		LessonID:  req.LessonID,
		Completed: req.Completed,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		var trackerErr *progress.Error
		if errors.As(err, &trackerErr) {
			writeError(w, http.StatusBadRequest, trackerErr.Code)
			return
		}
		writeServerError(w, err)
		return
	}

	stats, err := s.tracker.Stats(r.Context(), claims.UserID)
	if err != nil {
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"progress": mapProgressResponse(record),
		"stats":    stats,
	})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	targetUserID := claims.UserID
	if username := r.URL.Query().Get("username"); username != "" && username != claims.Username {
		if claims.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		target, err := s.store.GetUserByUsername(r.Context(), username)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusNotFound, "user_not_found")
				return
			}
			writeServerError(w, err)
			return
		}
		targetUserID = target.ID
	}

	records, err := s.tracker.List(r.Context(), targetUserID)
	if err != nil {
		writeServerError(w, err)
		return
	}
	stats, err := s.tracker.Stats(r.Context(), targetUserID)
	if err != nil {
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"progress": mapProgressResponses(records),
		"stats":    stats,
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": mapUserResponse(user)})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	username := chi.URLParam(r, "username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing_username")
		return
	}
	if !canAccess(claims, username) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": mapUserResponse(user)})
}

type updateProfileRequest struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	username := chi.URLParam(r, "username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing_username")
		return
	}
	if !canAccess(claims, username) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Email != nil && !emailPattern.MatchString(*req.Email) {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}

	if _, err := s.store.GetUserByUsername(r.Context(), username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeServerError(w, err)
		return
	}

	user, err := s.store.UpdateUser(r.Context(), username, repository.UserUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, time.Now().UTC())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": mapUserResponse(user)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeServerError(w, err)
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_password")
		return
	}

	hash, err := crypto.HashPasswordCost(req.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}
	if err := s.store.UpdatePassword(r.Context(), claims.UserID, hash, time.Now().UTC()); err != nil {
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, mapUserResponse(user))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": resp})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	user, errCode := s.buildNewUser(req)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": mapUserResponse(user)})
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing_username")
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !model.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	user, err := s.store.UpdateUserRole(r.Context(), username, model.NormalizeRole(req.Role), time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": mapUserResponse(user)})
}

type updateActiveRequest struct {
	Active *bool `json:"active"`
}

func (s *Server) handleUpdateActive(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing_username")
		return
	}

	var req updateActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "missing_active")
		return
	}

	user, err := s.store.UpdateUserActive(r.Context(), username, *req.Active, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": mapUserResponse(user)})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	username := chi.URLParam(r, "username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing_username")
		return
	}
	if username == claims.Username {
		writeError(w, http.StatusBadRequest, "cannot_delete_self")
		return
	}

	deleted, err := s.store.DeleteUser(r.Context(), username)
	if err != nil {
		writeServerError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	totalUsers, err := s.store.CountUsers(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}
	totalAdmins, err := s.store.CountUsersByRole(r.Context(), model.RoleAdmin)
	if err != nil {
		writeServerError(w, err)
		return
	}
	totalStudents, err := s.store.CountUsersByRole(r.Context(), model.RoleStudent)
	if err != nil {
		writeServerError(w, err)
		return
	}
	activeUsers, err := s.store.CountActiveUsers(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}
	completedLessons, err := s.store.CountAllCompletedLessons(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}

	avgProgress := progress.CompletionRate(completedLessons, totalUsers*s.cfg.TotalLessons)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats": map[string]interface{}{
			"totalUsers":    totalUsers,
			"totalAdmins":   totalAdmins,
			"totalStudents": totalStudents,
			"activeUsers":   activeUsers,
			"inactiveUsers": totalUsers - activeUsers,
			"avgProgress":   avgProgress,
		},
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		if s.redis != nil {
			if revoked, err := s.redis.Exists(r.Context(), denylistKey(token)).Result(); err == nil && revoked > 0 {
				writeError(w, http.StatusUnauthorized, "token_revoked")
				return
			}
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// canAccess is the ownership policy: a user reaches their own resources,
// an admin reaches everything.
func canAccess(claims *auth.Claims, resourceOwner string) bool {
	if claims == nil {
		return false
	}
	return claims.Username == resourceOwner || claims.Role == model.RoleAdmin
}

func denylistKey(token string) string {
	return "denylist:" + crypto.HashToken(token)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken")
	case errors.Is(err, repository.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken")
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, "user_not_found")
	default:
		writeServerError(w, err)
	}
}

// writeServerError logs the underlying failure and answers with a
// generic code; internals never reach the client.
func writeServerError(w http.ResponseWriter, err error) {
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "server_error")
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
