package handler

import (
	"school-portal-be/internal/pkg/logger"
	"school-portal-be/internal/pkg/serverutils"
	internalWS "school-portal-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type SubscriptionHandler struct {
	gateway   *internalWS.Gateway
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewSubscriptionHandler(gateway *internalWS.Gateway, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *SubscriptionHandler {
	return &SubscriptionHandler{
		gateway:   gateway,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs authenticates once at handshake and hands the connection to the gateway.
func (h *SubscriptionHandler) ServeWs(c *fiber.Ctx) error {
	// Browsers cannot set headers on a websocket handshake, so the query wins.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	principal, err := serverutils.ParsePrincipal(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn("SubscriptionHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.gateway.Serve(conn, principal)
	})(c)
}

// Presence reports whether a user has a live connection on this instance.
func (h *SubscriptionHandler) Presence(c *fiber.Ctx) error {
	userId, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid user id"))
	}
	connections := h.hub.Online(userId)
	return c.JSON(serverutils.SuccessResponse("Success get presence", fiber.Map{
		"user_id":     userId,
		"online":      connections > 0,
		"connections": connections,
	}))
}

func (h *SubscriptionHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/chat/v1/ws", h.ServeWs)

	presence := router.Group("/chat/v1/presence")
	presence.Use(serverutils.JwtMiddleware(h.jwtSecret))
	presence.Get("/:userId", h.Presence)
}
