package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/auth"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/db"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/discovery"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/ingest"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/profile"
)

type Server struct {
	Store        *db.Store
	AuthService  *auth.Service
	Orchestrator *discovery.Orchestrator
	Registry     *ingest.Registry
	Echo         *echo.Echo
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(store *db.Store, authService *auth.Service, orch *discovery.Orchestrator, registry *ingest.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Store:        store,
		AuthService:  authService,
		Orchestrator: orch,
		Registry:     registry,
		Echo:         e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)
	api.GET("/sources", s.handleGetSources)

	// Protected routes: everything scoped to an organization.
	org := api.Group("")
	org.Use(auth.Middleware)
	org.GET("/discover", s.handleDiscover)
	org.GET("/grants", s.handleListGrants)
	org.GET("/grants/:id", s.handleGetGrant)
	org.GET("/matches/top", s.handleTopMatches)
	org.POST("/interactions/:id", s.handleRecordInteraction)
	org.GET("/interactions", s.handleListInteractions)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/discover/:org_id", s.handleAdminDiscover)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email and a password of at least 8 characters are required"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrOrgExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetSources(c echo.Context) error {
	type sourceInfo struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Adapter    string `json:"adapter"`
		SourceType string `json:"source_type"`
		Enabled    bool   `json:"enabled"`
	}
	out := make([]sourceInfo, 0, len(s.Registry.Sources))
	for _, src := range s.Registry.Sources {
		out = append(out, sourceInfo{
			ID:         src.ID,
			Name:       src.Name,
			Adapter:    src.Adapter,
			SourceType: src.SourceType,
			Enabled:    src.Enabled,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sources": out})
}

// handleDiscover runs one aggregation pass for the authenticated org.
// Partial source failure is a 200 with the failures listed, never a 5xx.
func (s *Server) handleDiscover(c echo.Context) error {
	orgID, err := auth.GetOrgIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	query := ingest.Query{
		Location: c.QueryParam("location"),
	}
	if q := c.QueryParam("q"); q != "" {
		query.Terms = strings.Fields(q)
	}

	limit := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		limit = l
	}
	forceRefresh := c.QueryParam("refresh") == "true"

	result, err := s.Orchestrator.Discover(c.Request().Context(), orgID, query, limit, forceRefresh)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Organization profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if result.Errors == nil {
		result.Errors = []models.SourceFailure{}
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleListGrants(c echo.Context) error {
	orgID, err := auth.GetOrgIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	params := db.ListParams{
		Source: c.QueryParam("source"),
		Query:  c.QueryParam("q"),
		OrgID:  orgID,
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_score"), 64); err == nil {
		params.MinScore = &v
	}
	if days, err := strconv.Atoi(c.QueryParam("deadline_days")); err == nil && days > 0 {
		cutoff := time.Now().AddDate(0, 0, days)
		params.DeadlineBefore = &cutoff
		now := time.Now()
		params.DeadlineAfter = &now
	}

	result, err := s.Store.ListOpportunities(c.Request().Context(), params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity id"})
	}

	opp, err := s.Store.GetOpportunity(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Opportunity not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleTopMatches(c echo.Context) error {
	orgID, err := auth.GetOrgIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	opps, matches, err := s.Store.TopMatchesForOrg(c.Request().Context(), orgID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	type entry struct {
		Opportunity models.Opportunity `json:"opportunity"`
		Match       models.MatchResult `json:"match"`
	}
	out := make([]entry, 0, len(opps))
	for i := range opps {
		out = append(out, entry{Opportunity: opps[i], Match: matches[i]})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"matches": out})
}

func (s *Server) handleRecordInteraction(c echo.Context) error {
	orgID, err := auth.GetOrgIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	oppID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity id"})
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !models.ValidAction(req.Action) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown action %q", req.Action)})
	}

	if _, err := s.Store.GetOpportunity(c.Request().Context(), oppID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Opportunity not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if err := s.Store.RecordInteraction(c.Request().Context(), orgID, oppID, models.InteractionAction(req.Action)); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleListInteractions(c echo.Context) error {
	orgID, err := auth.GetOrgIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	interactions, err := s.Store.ListInteractions(c.Request().Context(), orgID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if interactions == nil {
		interactions = []models.Interaction{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"interactions": interactions})
}

// handleAdminDiscover triggers a pass for any org, for operators and cron.
func (s *Server) handleAdminDiscover(c echo.Context) error {
	orgID, err := uuid.Parse(c.Param("org_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid org id"})
	}

	forceRefresh := c.QueryParam("refresh") == "true"
	result, err := s.Orchestrator.Discover(c.Request().Context(), orgID, ingest.Query{}, 0, forceRefresh)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Organization profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result.Run)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
