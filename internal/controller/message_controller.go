package controller

import (
	"time"

	"school-portal-be/internal/dto"
	"school-portal-be/internal/pkg/apperror"
	"school-portal-be/internal/pkg/serverutils"
	"school-portal-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IMessageController interface {
	RegisterRoutes(r fiber.Router)
	Send(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	MarkRead(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type messageController struct {
	service   service.IMessageService
	jwtSecret string
}

func NewMessageController(service service.IMessageService, jwtSecret string) IMessageController {
	return &messageController{service: service, jwtSecret: jwtSecret}
}

func (c *messageController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1/messages")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Get("", c.List)
	h.Post("", c.Send)
	h.Post("read", c.MarkRead)
	h.Delete(":id", c.Delete)
}

func (c *messageController) Send(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.Context(), serverutils.PrincipalFrom(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success send message", res))
}

// List reads chat_id, order, limit, before (RFC3339) and depth from the query.
func (c *messageController) List(ctx *fiber.Ctx) error {
	var req dto.ListMessagesRequest
	if err := ctx.QueryParser(&req); err != nil {
		return apperror.InvalidArgument("malformed query")
	}

	chatId, err := uuid.Parse(ctx.Query("chat_id"))
	if err != nil {
		return apperror.InvalidArgument("invalid chat_id")
	}
	req.ChatId = chatId

	if raw := ctx.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return apperror.InvalidArgument("before must be an RFC3339 timestamp")
		}
		req.Before = &before
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ListMessages(ctx.Context(), serverutils.PrincipalFrom(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *messageController) MarkRead(ctx *fiber.Ctx) error {
	var req dto.MarkReadRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.MarkRead(ctx.Context(), serverutils.PrincipalFrom(ctx), req.ChatId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success mark chat read", res))
}

func (c *messageController) Delete(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.service.DeleteMessage(ctx.Context(), serverutils.PrincipalFrom(ctx), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete message", nil))
}
