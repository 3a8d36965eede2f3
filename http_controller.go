package users

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// ContextKey is the router locals key the JWT middleware stores claims
	// under (default: "user")
	ContextKey string

	// Debug dumps request payloads and responses to stdout
	Debug bool

	// ErrorHandler handles errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController exposes the auth and user-management operations as JSON
// endpoints. Protected routes expect the jwtware middleware to have stored
// validated claims in the router locals.
type HTTPController struct {
	auther    *Auther
	lifecycle *LifecycleService
	users     UserReader
	logger    Logger
	config    HTTPConfig
}

// NewHTTPController creates a new user-management HTTP controller.
func NewHTTPController(auther *Auther, lifecycle *LifecycleService, users UserReader, cfg HTTPConfig) *HTTPController {
	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	return &HTTPController{
		auther:    auther,
		lifecycle: lifecycle,
		users:     users,
		logger:    defLogger{},
		config:    cfg,
	}
}

// WithLogger overrides the logger.
func (c *HTTPController) WithLogger(logger Logger) *HTTPController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// RegisterPublicRoutes registers the unauthenticated auth routes.
func (c *HTTPController) RegisterPublicRoutes(group RouteRegistrar) {
	group.Post("/auth/register", c.Register)
	group.Post("/auth/login", c.Login)
	group.Post("/auth/refresh", c.RefreshToken)
}

// RegisterProtectedRoutes registers the routes that require a valid access
// token. Wrap the group with the jwtware middleware before calling this.
func (c *HTTPController) RegisterProtectedRoutes(group RouteRegistrar) {
	group.Get("/users/me", c.Me)
	group.Patch("/users/me", c.UpdateMe)
	group.Get("/users", c.ListUsers)
	group.Post("/users", c.CreateUser)
	group.Get("/users/:id", c.GetUser)
	group.Patch("/users/:id", c.UpdateUser)
	group.Post("/users/:id/suspend", c.SuspendUser)
	group.Post("/users/:id/activate", c.ActivateUser)
}

// Register handles self-registration. New accounts are active clients.
func (c *HTTPController) Register(ctx router.Context) error {
	payload := RegisterUserMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if c.config.Debug {
		c.logger.Debug("register payload: %s", print.MaybePrettyJSON(payload))
	}

	user, err := c.lifecycle.Register(ctx.Context(), payload, c.clientIP(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, user.Public())
}

// LoginPayload is the credentials body for the login endpoint.
type LoginPayload struct {
	Email    string `form:"email_primary" json:"email_primary"`
	Password string `form:"password" json:"password"`
}

// Login verifies credentials and returns the token pair with the user.
func (c *HTTPController) Login(ctx router.Context) error {
	payload := LoginPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	result, err := c.auther.Login(ctx.Context(), payload.Email, payload.Password, c.clientIP(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, result)
}

// RefreshPayload carries the refresh token.
type RefreshPayload struct {
	Refresh string `form:"refresh" json:"refresh"`
}

// RefreshToken exchanges a refresh token for a new pair.
func (c *HTTPController) RefreshToken(ctx router.Context) error {
	payload := RefreshPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	pair, err := c.auther.Refresh(ctx.Context(), payload.Refresh)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, pair)
}

// Me returns the authenticated user's own record.
func (c *HTTPController) Me(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, user.Public())
}

// UpdateMe applies profile changes to the authenticated user's own record.
func (c *HTTPController) UpdateMe(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	changes := map[string]any{}
	if err := ctx.Bind(&changes); err != nil {
		return c.handleError(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	updated, err := c.lifecycle.UpdateSelf(ctx.Context(), user, changes, c.clientIP(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, updated.Public())
}

// ListUsers returns the directory listing for privileged roles.
func (c *HTTPController) ListUsers(ctx router.Context) error {
	actor, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	filters := ListFilters{
		Role:   UserRole(ctx.Query("role", "")),
		Status: UserStatus(ctx.Query("status", "")),
		Search: ctx.Query("search", ""),
		Limit:  queryInt(ctx, "limit"),
		Offset: queryInt(ctx, "offset"),
	}

	records, err := c.auther.ListUsers(ctx.Context(), actor, filters)
	if err != nil {
		return c.handleError(ctx, err)
	}

	response := make([]PublicUser, 0, len(records))
	for _, record := range records {
		response = append(response, record.Public())
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"users": response,
		"count": len(response),
	})
}

// CreateUser creates a user with an explicit role and status. Admin only.
func (c *HTTPController) CreateUser(ctx router.Context) error {
	actor, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := CreateUserMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	user, err := c.lifecycle.CreateByAdmin(ctx.Context(), payload, actor, c.clientIP(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, user.Public())
}

// GetUser returns a single record. Admins may read anyone, others themselves.
func (c *HTTPController) GetUser(ctx router.Context) error {
	actor, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	user, err := c.auther.GetUser(ctx.Context(), actor, ctx.Param("id"))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, user.Public())
}

// UpdateUser applies changes to any record. Admin only.
func (c *HTTPController) UpdateUser(ctx router.Context) error {
	actor, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	changes := map[string]any{}
	if err := ctx.Bind(&changes); err != nil {
		return c.handleError(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	updated, err := c.lifecycle.UpdateByAdmin(ctx.Context(), ctx.Param("id"), changes, actor, c.clientIP(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, updated.Public())
}

// SuspendUser suspends the target account. Admin only, idempotent.
func (c *HTTPController) SuspendUser(ctx router.Context) error {
	actor, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	user, err := c.lifecycle.Suspend(ctx.Context(), ctx.Param("id"), actor, c.clientIP(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"detail": "user suspended",
		"user":   user.Public(),
	})
}

// ActivateUser reinstates the target account. Admin only, idempotent.
func (c *HTTPController) ActivateUser(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	updated, err := c.lifecycle.Activate(ctx.Context(), ctx.Param("id"), user, c.clientIP(ctx))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"detail": "user activated",
		"user":   updated.Public(),
	})
}

// currentUser resolves the actor from the validated claims in the router
// locals. Tokens for deleted or unknown users fail with not found.
func (c *HTTPController) currentUser(ctx router.Context) (*User, error) {
	claims, ok := GetRouterClaims(ctx, c.config.ContextKey)
	if !ok {
		return nil, ErrTokenMalformed
	}

	return c.users.GetByID(ctx.Context(), claims.UserID())
}

func (c *HTTPController) clientIP(ctx router.Context) string {
	forwarded := ctx.GetString(fiber.HeaderXForwardedFor, "")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	return ctx.GetString("X-Real-Ip", "")
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	if richErr.Code == 0 {
		switch richErr.Category {
		case errors.CategoryValidation:
			richErr = richErr.WithCode(fiber.StatusBadRequest)
		case errors.CategoryAuth, errors.CategoryAuthz:
			richErr = richErr.WithCode(fiber.StatusUnauthorized)
		case errors.CategoryNotFound:
			richErr = richErr.WithCode(fiber.StatusNotFound)
		case errors.CategoryConflict:
			richErr = richErr.WithCode(fiber.StatusConflict)
		default:
			richErr = richErr.WithCode(fiber.StatusInternalServerError)
		}
	}

	c.logger.Warn(
		"request failed",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	body := map[string]any{
		"error": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}
	if len(richErr.Metadata) > 0 {
		body["details"] = richErr.Metadata
	}

	return ctx.JSON(richErr.Code, body)
}

func queryInt(ctx router.Context, key string) int {
	raw := ctx.Query(key, "")
	if raw == "" {
		return 0
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}

	return value
}
