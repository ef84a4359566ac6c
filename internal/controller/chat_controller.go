package controller

import (
	"school-portal-be/internal/dto"
	"school-portal-be/internal/pkg/apperror"
	"school-portal-be/internal/pkg/serverutils"
	"school-portal-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	GetOrCreatePrivate(ctx *fiber.Ctx) error
	GetMine(ctx *fiber.Ctx) error
	GetJoinable(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	AddParticipants(ctx *fiber.Ctx) error
	Join(ctx *fiber.Ctx) error
	Leave(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type chatController struct {
	service   service.IChatService
	jwtSecret string
}

func NewChatController(service service.IChatService, jwtSecret string) IChatController {
	return &chatController{service: service, jwtSecret: jwtSecret}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1/chats")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Get("", c.GetMine)
	h.Post("", c.Create)
	h.Post("private", c.GetOrCreatePrivate)
	h.Get("joinable", c.GetJoinable)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Post(":id/participants", c.AddParticipants)
	h.Post(":id/join", c.Join)
	h.Post(":id/leave", c.Leave)
}

func (c *chatController) Create(ctx *fiber.Ctx) error {
	principal := serverutils.PrincipalFrom(ctx)

	var req dto.CreateChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateChat(ctx.Context(), principal, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create chat", res))
}

func (c *chatController) GetOrCreatePrivate(ctx *fiber.Ctx) error {
	principal := serverutils.PrincipalFrom(ctx)

	var req dto.PrivateChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.GetOrCreatePrivateChat(ctx.Context(), principal, req.UserId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get private chat", res))
}

func (c *chatController) GetMine(ctx *fiber.Ctx) error {
	res, err := c.service.ListMyChats(ctx.Context(), serverutils.PrincipalFrom(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chats", res))
}

func (c *chatController) GetJoinable(ctx *fiber.Ctx) error {
	res, err := c.service.ListJoinableChats(ctx.Context(), serverutils.PrincipalFrom(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get joinable chats", res))
}

func (c *chatController) Show(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.GetChat(ctx.Context(), serverutils.PrincipalFrom(ctx), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show chat", res))
}

func (c *chatController) AddParticipants(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.AddParticipantsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	req.ChatId = id
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AddParticipants(ctx.Context(), serverutils.PrincipalFrom(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success add participants", res))
}

func (c *chatController) Join(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.JoinPublicChat(ctx.Context(), serverutils.PrincipalFrom(ctx), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success join chat", res))
}

func (c *chatController) Leave(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.service.LeaveChat(ctx.Context(), serverutils.PrincipalFrom(ctx), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success leave chat", nil))
}

func (c *chatController) Delete(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.service.DeleteChat(ctx.Context(), serverutils.PrincipalFrom(ctx), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete chat", nil))
}

func idParam(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, apperror.InvalidArgument("invalid %s", name)
	}
	return id, nil
}
