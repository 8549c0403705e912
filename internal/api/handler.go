package api

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/teamhub/internal/chat"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/service"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

type Handler struct {
	identity *service.IdentityService
	teams    *service.TeamService
	projects *service.ProjectService
	chats    *service.ChatService

	hub           *chat.Hub
	healthChecker HealthChecker

	// Chat sockets are hijacked, so echo's Shutdown does not reach them.
	closing atomic.Bool
	conns   sync.WaitGroup

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		hub:    chat.NewHub(),
		logger: logger,
	}
}

// Close sends StatusGoingAway to every open chat socket and waits for their
// loops to return.
func (h *Handler) Close() {
	h.closing.Store(true)
	h.hub.CloseAll()
	h.conns.Wait()
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithIdentityService(identity *service.IdentityService) *Handler {
	h.identity = identity
	return h
}

func (h *Handler) WithTeamService(teams *service.TeamService) *Handler {
	h.teams = teams
	return h
}

func (h *Handler) WithProjectService(projects *service.ProjectService) *Handler {
	h.projects = projects
	return h
}

func (h *Handler) WithChatService(chats *service.ChatService) *Handler {
	h.chats = chats
	return h
}

func (h *Handler) WithHub(hub *chat.Hub) *Handler {
	h.hub = hub
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if h.healthChecker != nil {
		e.GET("/health", h.healthChecker.HealthCheck())
	}

	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)

	e.GET("/teams/public", h.ListPublicTeams)
	e.GET("/teams/:id", h.GetTeam)

	e.GET("/ws/team-chat", h.TeamChat)

	secured := e.Group("", AuthMiddleware(h.identity))

	secured.GET("/users/:username", h.GetUserByUsername)

	secured.POST("/teams", h.CreateTeam)
	secured.GET("/teams/mine", h.ListMyTeams)
	secured.GET("/teams/:id/members", h.GetTeamMembers)
	secured.GET("/teams/:id/projects", h.ListTeamProjects)
	secured.GET("/teams/:id/access", h.GetMyTeamAccess)

	secured.POST("/projects", h.CreateProject)
	secured.GET("/projects/:id", h.GetProject)
	secured.PATCH("/projects/:id", h.UpdateProject)

	secured.POST("/team-accesses/invite", h.InviteToTeam)
	secured.POST("/team-accesses/respond", h.RespondToInvitation)
	secured.PATCH("/team-accesses/role", h.SetRole)
	secured.GET("/team-accesses/mine", h.ListMyAccesses)
	secured.GET("/team-accesses/team/:id", h.ListTeamAccesses)
	secured.DELETE("/team-accesses/:id", h.RevokeAccess)

	secured.GET("/chats/:id/messages", h.ListMessages)
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Register(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req credentialsRequest
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	session, err := h.identity.Register(e.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, session)
}

func (h *Handler) Login(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req credentialsRequest
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	session, err := h.identity.Authenticate(e.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, session)
}

func (h *Handler) Refresh(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Email        string `json:"email" validate:"required"`
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	session, err := h.identity.RenewSession(e.Request().Context(), req.Email, req.RefreshToken)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, session)
}

func (h *Handler) GetUserByUsername(e echo.Context) error {
	user, err := h.identity.GetUserByUsername(e.Request().Context(), e.Param("username"))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, user)
}

func (h *Handler) CreateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Name        string `json:"name" validate:"required"`
		Description string `json:"description"`
		Avatar      string `json:"avatar"`
		Banner      string `json:"banner"`
		IsPublic    *bool  `json:"isPublic"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	leaderID := claimsFrom(e).UserID
	l.Info("creating team", zap.String("team_name", req.Name), zap.String("leader_id", leaderID))

	team, err := h.teams.CreateTeam(e.Request().Context(), &model.CreateTeam{
		LeaderID:    leaderID,
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		Banner:      req.Banner,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, team)
}

func (h *Handler) GetTeam(e echo.Context) error {
	team, err := h.teams.GetTeamSummary(e.Request().Context(), e.Param("id"))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) GetTeamMembers(e echo.Context) error {
	team, err := h.teams.GetTeamWithMembers(e.Request().Context(), e.Param("id"))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) ListTeamProjects(e echo.Context) error {
	projects, err := h.projects.ListForTeam(e.Request().Context(), e.Param("id"))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, projects)
}

func (h *Handler) ListMyTeams(e echo.Context) error {
	teams, err := h.teams.ListTeamsForUser(e.Request().Context(), claimsFrom(e).UserID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) ListPublicTeams(e echo.Context) error {
	page, pageSize := defaultPage, defaultPageSize

	bindErr := echo.QueryParamsBinder(e).
		Int("page", &page).
		Int("page_size", &pageSize).
		BindError()
	if bindErr != nil {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidInput, "page and page_size must be integers"))
	}

	result, err := h.teams.ListActivePublicTeams(e.Request().Context(), page, pageSize)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, result)
}

func (h *Handler) CreateProject(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
		TeamID      string `json:"team" validate:"required"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	project, err := h.projects.Create(e.Request().Context(), req.Title, req.Description, req.TeamID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, project)
}

func (h *Handler) GetProject(e echo.Context) error {
	project, err := h.projects.Get(e.Request().Context(), e.Param("id"))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, project)
}

func (h *Handler) UpdateProject(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	project, err := h.projects.Update(e.Request().Context(), e.Param("id"), &model.ProjectUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, project)
}

func (h *Handler) InviteToTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Username string         `json:"username" validate:"required"`
		TeamID   string         `json:"teamId" validate:"required"`
		Role     model.TeamRole `json:"teamRole" validate:"required"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	access, err := h.identity.InviteToTeam(e.Request().Context(), claimsFrom(e).UserID, req.Username, req.TeamID, req.Role)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, access)
}

func (h *Handler) RespondToInvitation(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		TeamID string `json:"teamId" validate:"required"`
		Accept *bool  `json:"accept" validate:"required"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	access, err := h.identity.RespondToInvitation(e.Request().Context(), claimsFrom(e).UserID, req.TeamID, *req.Accept)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, access)
}

func (h *Handler) SetRole(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		TeamID string         `json:"teamId" validate:"required"`
		UserID string         `json:"userId" validate:"required"`
		Role   model.TeamRole `json:"teamRole" validate:"required"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	access, err := h.identity.SetRole(e.Request().Context(), claimsFrom(e).UserID, req.TeamID, req.UserID, req.Role)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, access)
}

func (h *Handler) GetMyTeamAccess(e echo.Context) error {
	access, err := h.identity.GetAccessForUserInTeam(e.Request().Context(), claimsFrom(e).UserID, e.Param("id"))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, access)
}

func (h *Handler) ListMyAccesses(e echo.Context) error {
	accesses, err := h.identity.ListAccessesForUser(e.Request().Context(), claimsFrom(e).UserID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, accesses)
}

func (h *Handler) ListTeamAccesses(e echo.Context) error {
	accesses, err := h.identity.ListAccessesForTeam(e.Request().Context(), e.Param("id"))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, accesses)
}

func (h *Handler) RevokeAccess(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	accessID := e.Param("id")
	requesterID := claimsFrom(e).UserID

	l.Info("revoking team access", zap.String("access_id", accessID), zap.String("requester_id", requesterID))

	if err := h.identity.RevokeAccess(e.Request().Context(), accessID, requesterID); err != nil {
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) ListMessages(e echo.Context) error {
	limit := model.DefaultMessagesLimit
	if err := echo.QueryParamsBinder(e).Int("limit", &limit).BindError(); err != nil {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidInput, "limit must be an integer"))
	}

	messages, err := h.chats.ListMessages(e.Request().Context(), e.Param("id"), e.QueryParam("before"), limit)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, messages)
}

type errorResponse struct {
	Error *service.Error `json:"error"`
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := errorResponse{Error: err}

	switch err.Code {
	case service.ErrorCodeInvalidInput:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeConflict:
		return e.JSON(http.StatusConflict, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
