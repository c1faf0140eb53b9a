package controller

import (
	"strconv"

	"reqgather-bff/internal/pkg/logger"
	"reqgather-bff/internal/pkg/serverutils"
	"reqgather-bff/internal/service"
	internalWS "reqgather-bff/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IInterviewController interface {
	RegisterRoutes(r fiber.Router)
	GetStatus(ctx *fiber.Ctx) error
	Watch(ctx *fiber.Ctx) error
	Unwatch(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type interviewController struct {
	service service.IInterviewService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewInterviewController(service service.IInterviewService, hub *internalWS.Hub, log logger.ILogger) IInterviewController {
	return &interviewController{service: service, hub: hub, logger: log}
}

func (c *interviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/interview/v1")

	h.Get("/:id/ws", c.ServeWs)

	h.Use(serverutils.JwtMiddleware)
	h.Get("/:id/status", c.GetStatus)
	h.Post("/:id/watch", c.Watch)
	h.Delete("/:id/watch", c.Unwatch)
}

func (c *interviewController) GetStatus(ctx *fiber.Ctx) error {
	interviewID, err := paramID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetStatus(interviewID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get interview status", res))
}

func (c *interviewController) Watch(ctx *fiber.Ctx) error {
	interviewID, err := paramID(ctx)
	if err != nil {
		return err
	}

	c.service.Watch(interviewID)

	return ctx.JSON(serverutils.SuccessResponse[any]("Success watch interview", nil))
}

func (c *interviewController) Unwatch(ctx *fiber.Ctx) error {
	interviewID, err := paramID(ctx)
	if err != nil {
		return err
	}

	c.service.Unwatch(interviewID)

	return ctx.JSON(serverutils.SuccessResponse[any]("Success unwatch interview", nil))
}

func (c *interviewController) ServeWs(ctx *fiber.Ctx) error {
	if _, err := serverutils.ParseWsToken(ctx); err != nil {
		return err
	}

	interviewID, err := paramID(ctx)
	if err != nil {
		return err
	}

	c.service.Watch(interviewID)

	topic := "interview:" + strconv.FormatInt(interviewID, 10)
	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(c.hub, conn, topic)
			// Status channels exist only for watching; drop the upstream
			// connection once the last browser leaves.
			if !c.hub.HasSubscribers(topic) {
				c.service.Unwatch(interviewID)
			}
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}
