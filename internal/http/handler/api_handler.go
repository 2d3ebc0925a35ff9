package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pulseurl/pulseurl/internal/app/model"
	"github.com/pulseurl/pulseurl/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Stats       service.StatsService
	Resolver    *service.Resolver
	// BaseURL prefixes returned short URLs, e.g. "https://psu.rl".
	BaseURL string
}

// APIHandler implements the management and analytics API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	stats       service.StatsService
	resolver    *service.Resolver
	baseURL     string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		stats:       deps.Stats,
		resolver:    deps.Resolver,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Post("/verify/:code", h.Verify)

		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Post("/bulk", h.BulkCreate)
			links.Get("/:code/info", h.LinkInfo)
			links.Get("/:code/analytics", h.Analytics)
			links.Delete("/:code", h.DeleteLink)
		}

		api.Get("/users/:userId/links", h.UserLinks)
	}
}

// CreateLinkRequest represents the request body for shortening a URL.
type CreateLinkRequest struct {
	URL            string  `json:"url"`
	CustomAlias    string  `json:"custom_alias,omitempty"`
	Password       string  `json:"password,omitempty"`
	ExpiresInHours int     `json:"expires_in_hours,omitempty"`
	OwnerID        *string `json:"owner_id,omitempty"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	Code           string     `json:"code"`
	ShortURL       string     `json:"short_url"`
	TargetURL      string     `json:"target_url"`
	HasPassword    bool       `json:"has_password"`
	Title          *string    `json:"title,omitempty"`
	ImageURL       *string    `json:"image_url,omitempty"`
	Clicks         int64      `json:"clicks"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func (h *APIHandler) linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		Code:           link.Code,
		ShortURL:       h.baseURL + "/" + link.Code,
		TargetURL:      link.TargetURL,
		HasPassword:    link.HasPassword(),
		Title:          link.Title,
		ImageURL:       link.ImageURL,
		Clicks:         link.Clicks,
		LastAccessedAt: link.LastAccessedAt,
		CreatedAt:      link.CreatedAt,
		ExpiresAt:      link.ExpiresAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}
	if req.ExpiresInHours < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expires_in_hours must not be negative",
		})
	}

	input := service.CreateLinkInput{
		CustomAlias: req.CustomAlias,
		TargetURL:   req.URL,
		OwnerID:     req.OwnerID,
		Password:    req.Password,
		ExpiresIn:   time.Duration(req.ExpiresInHours) * time.Hour,
	}

	link, err := h.linkService.CreateLink(requestContext(c), input)
	if err != nil {
		if errors.Is(err, service.ErrCodeTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "custom alias already taken",
			})
		}
		h.logger.Error("failed to create link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create link",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(h.linkResponse(link))
}

// BulkCreateRequest represents the request body for bulk shortening.
type BulkCreateRequest struct {
	URLs    []string `json:"urls"`
	OwnerID *string  `json:"owner_id,omitempty"`
}

// BulkCreate handles POST /api/links/bulk
func (h *APIHandler) BulkCreate(c *fiber.Ctx) error {
	var req BulkCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if len(req.URLs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "urls array is required",
		})
	}
	if len(req.URLs) > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "maximum 100 urls allowed",
		})
	}

	results := h.linkService.BulkCreate(requestContext(c), req.OwnerID, req.URLs)
	return c.JSON(fiber.Map{"results": results})
}

// LinkInfo handles GET /api/links/:code/info; the password page uses it
// to learn whether a link is gated without ever seeing the target.
func (h *APIHandler) LinkInfo(c *fiber.Ctx) error {
	code := c.Params("code")

	link, err := h.linkService.GetLink(requestContext(c), code)
	if err != nil {
		return h.failJSON(c, code, err)
	}
	if link.Expired(time.Now()) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "this link has expired",
		})
	}

	return c.JSON(fiber.Map{
		"has_password": link.HasPassword(),
		"title":        link.Title,
		"image_url":    link.ImageURL,
	})
}

// VerifyRequest represents the request body for password verification.
type VerifyRequest struct {
	Password string `json:"password"`
}

// Verify handles POST /api/verify/:code. A correct password returns the
// target URL; expiry is re-checked because a link can expire between the
// initial gate and verification.
func (h *APIHandler) Verify(c *fiber.Ctx) error {
	code := c.Params("code")

	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	target, err := h.resolver.VerifyPassword(requestContext(c), code, req.Password, service.Click{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
		Referrer:  c.Get("Referer"),
	})
	if err != nil {
		return h.failJSON(c, code, err)
	}

	return c.JSON(fiber.Map{"target_url": target})
}

// Analytics handles GET /api/links/:code/analytics?days=N
func (h *APIHandler) Analytics(c *fiber.Ctx) error {
	code := c.Params("code")

	days := c.QueryInt("days", 7)
	if days < 0 || days > 365 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "days must be between 0 and 365",
		})
	}

	snapshot, err := h.stats.Snapshot(requestContext(c), code, days)
	if err != nil {
		return h.failJSON(c, code, err)
	}

	return c.JSON(snapshot)
}

// UserLinks handles GET /api/users/:userId/links
func (h *APIHandler) UserLinks(c *fiber.Ctx) error {
	userID := c.Params("userId")

	limit := 20
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	offset := 0
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}

	links, err := h.linkService.ListByOwner(requestContext(c), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err), zap.String("owner", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.linkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// DeleteLink handles DELETE /api/links/:code
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	code := c.Params("code")

	if err := h.linkService.DeleteLink(requestContext(c), code); err != nil {
		return h.failJSON(c, code, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandler) failJSON(c *fiber.Ctx, code string, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	case errors.Is(err, service.ErrExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "this link has expired",
		})
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "incorrect password",
		})
	default:
		h.logger.Error("api request failed", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}
