package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pulseurl/pulseurl/internal/app/service"
	httpUtil "github.com/pulseurl/pulseurl/internal/http/util"
	"github.com/pulseurl/pulseurl/internal/http/view"
	"go.uber.org/zap"
)

const unlockTokenTTL = 60 * time.Second

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver *service.Resolver
	Secret   []byte
}

// RedirectHandler implements the hot redirect path and the password
// unlock flow.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver *service.Resolver
	tokens   *httpUtil.TokenSigner
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
		tokens:   httpUtil.NewTokenSigner(deps.Secret, unlockTokenTTL),
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:code", h.Resolve)
	router.Post("/:code/unlock", h.Unlock)
	router.Get("/:code/_go/:token", h.Go)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "PulseURL",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code. Ungated links redirect straight to the
// target; gated links get the password page; failures map to 404/410.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	resolution, err := h.resolver.Resolve(requestContext(c), code, clickFrom(c))
	if err != nil {
		return h.fail(c, code, err)
	}

	if resolution.Gated {
		return h.renderPasswordPage(c, code, false)
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", resolution.TargetURL))
	return c.Redirect(resolution.TargetURL, fiber.StatusFound)
}

// Unlock handles the password form post. A correct password verifies,
// counts the click, and hops through the signed unlock URL; a wrong one
// re-renders the page.
func (h *RedirectHandler) Unlock(c *fiber.Ctx) error {
	code := c.Params("code")
	password := c.FormValue("password")

	target, err := h.resolver.VerifyPassword(requestContext(c), code, password, clickFrom(c))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return h.renderPasswordPage(c, code, true)
		}
		return h.fail(c, code, err)
	}

	token, err := h.tokens.Issue(code)
	if err != nil {
		// The click is already counted; fall back to a direct redirect.
		h.logger.Error("failed to issue unlock token", zap.Error(err))
		return c.Redirect(target, fiber.StatusFound)
	}

	return c.Redirect(fmt.Sprintf("/%s/_go/%s", code, token), fiber.StatusFound)
}

// Go handles GET /:code/_go/:token, the post-verification hop. The
// token proves a recent successful verification, so no click is counted
// here.
func (h *RedirectHandler) Go(c *fiber.Ctx) error {
	code := c.Params("code")
	token := c.Params("token")
	if code == "" || token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing code or token",
		})
	}

	if err := h.tokens.Validate(code, token); err != nil {
		if errors.Is(err, httpUtil.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to validate unlock token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to validate token",
		})
	}

	target, err := h.resolver.Target(requestContext(c), code)
	if err != nil {
		return h.fail(c, code, err)
	}

	h.logger.Debug("final redirect", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusFound)
}

func (h *RedirectHandler) renderPasswordPage(c *fiber.Ctx, code string, failed bool) error {
	html, err := view.RenderPasswordPage(view.PasswordPageData{
		Code:      code,
		VerifyURL: fmt.Sprintf("/%s/unlock", code),
		Failed:    failed,
	})
	if err != nil {
		h.logger.Error("failed to render password page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}

	status := fiber.StatusOK
	if failed {
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).
		Type("html", "utf-8").
		SendString(html)
}

func (h *RedirectHandler) fail(c *fiber.Ctx, code string, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short link not found",
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
		h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func clickFrom(c *fiber.Ctx) service.Click {
	return service.Click{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
		Referrer:  c.Get("Referer"),
	}
}
