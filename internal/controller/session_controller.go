package controller

import (
	"strconv"

	"reqgather-bff/internal/dto"
	"reqgather-bff/internal/pkg/logger"
	"reqgather-bff/internal/pkg/serverutils"
	"reqgather-bff/internal/service"
	internalWS "reqgather-bff/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	CreateFromProject(ctx *fiber.Ctx) error
	CreateFromContext(ctx *fiber.Ctx) error
	GetState(ctx *fiber.Ctx) error
	SubmitAnswer(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Reconnect(ctx *fiber.Ctx) error
	Release(ctx *fiber.Ctx) error
	GetDocument(ctx *fiber.Ctx) error
	ExportDocument(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewSessionController(service service.ISessionService, hub *internalWS.Hub, log logger.ILogger) ISessionController {
	return &sessionController{service: service, hub: hub, logger: log}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/agent/v1")

	// Websocket handshake authenticates via query token, not the bearer
	// middleware.
	h.Get("/sessions/:id/ws", c.ServeWs)

	h.Use(serverutils.JwtMiddleware)
	h.Post("/sessions/from-project", c.CreateFromProject)
	h.Post("/sessions/from-context", c.CreateFromContext)
	h.Get("/sessions/:id/state", c.GetState)
	h.Post("/sessions/:id/answer", c.SubmitAnswer)
	h.Post("/sessions/:id/cancel", c.Cancel)
	h.Post("/sessions/:id/reconnect", c.Reconnect)
	h.Delete("/sessions/:id", c.Release)
	h.Get("/documents/:id", c.GetDocument)
	h.Post("/documents/:id/export", c.ExportDocument)
}

func (c *sessionController) CreateFromProject(ctx *fiber.Ctx) error {
	var req dto.CreateSessionFromProjectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateFromProject(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) CreateFromContext(ctx *fiber.Ctx) error {
	var req dto.CreateSessionFromContextRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateFromContext(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) GetState(ctx *fiber.Ctx) error {
	sessionID, err := paramID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetState(sessionID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session state", res))
}

func (c *sessionController) SubmitAnswer(ctx *fiber.Ctx) error {
	sessionID, err := paramID(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitAnswerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.SubmitAnswer(ctx.Context(), sessionID, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success submit answer", nil))
}

func (c *sessionController) Cancel(ctx *fiber.Ctx) error {
	sessionID, err := paramID(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Cancel(ctx.Context(), sessionID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success cancel session", nil))
}

func (c *sessionController) Reconnect(ctx *fiber.Ctx) error {
	sessionID, err := paramID(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Reconnect(sessionID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success request reconnect", nil))
}

func (c *sessionController) Release(ctx *fiber.Ctx) error {
	sessionID, err := paramID(ctx)
	if err != nil {
		return err
	}

	c.service.Release(sessionID)

	return ctx.JSON(serverutils.SuccessResponse[any]("Success release session", nil))
}

func (c *sessionController) GetDocument(ctx *fiber.Ctx) error {
	documentID, err := paramID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetDocument(ctx.Context(), documentID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get document", res))
}

func (c *sessionController) ExportDocument(ctx *fiber.Ctx) error {
	documentID, err := paramID(ctx)
	if err != nil {
		return err
	}

	var req dto.ExportDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ExportURL(documentID, req.Format)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success build export url", res))
}

// ServeWs subscribes the browser to the session's state topic. Opening the
// subscription also ensures the upstream channel is live.
func (c *sessionController) ServeWs(ctx *fiber.Ctx) error {
	if _, err := serverutils.ParseWsToken(ctx); err != nil {
		return err
	}

	sessionID, err := paramID(ctx)
	if err != nil {
		return err
	}

	// Ensure the channel exists before the browser starts listening.
	if _, err := c.service.GetState(sessionID); err != nil {
		return err
	}

	topic := "session:" + strconv.FormatInt(sessionID, 10)
	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("SessionController", "Browser subscribed", map[string]interface{}{"topic": topic})
			internalWS.ServeWs(c.hub, conn, topic)
			c.logger.Info("SessionController", "Browser unsubscribed", map[string]interface{}{"topic": topic})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}

func paramID(ctx *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid id")
	}
	return id, nil
}
