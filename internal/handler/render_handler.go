package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/middleware"
	"github.com/noah-isme/talentscope-api/internal/service"
	"github.com/noah-isme/talentscope-api/internal/utils"
)

const renderStreamPingInterval = 30 * time.Second

// RenderHandler accepts document render requests and exposes job status.
type RenderHandler struct {
	queue     service.RenderQueueService
	events    service.RenderEventService
	validator *validator.Validate
	logger    zerolog.Logger
}

type renderStreamMessage struct {
	Type   string                    `json:"type"`
	Status *dto.RenderStatusResponse `json:"status,omitempty"`
	Event  *dto.RenderStatusEvent    `json:"event,omitempty"`
}

// NewRenderHandler constructs the handler. events may be nil, which disables the live stream.
func NewRenderHandler(queue service.RenderQueueService, events service.RenderEventService, validate *validator.Validate, logger zerolog.Logger) *RenderHandler {
	return &RenderHandler{
		queue:     queue,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "render_handler").Logger(),
	}
}

// Register binds render routes under the reports group.
func (h *RenderHandler) Register(router fiber.Router) {
	router.Post("/render", middleware.RequireRole("admin"), middleware.RateLimit("render-enqueue", 30, time.Minute), h.enqueue)
	router.Get("/:assignmentId/render", h.status)
	if h.events != nil {
		router.Get("/:assignmentId/render/ws", h.upgrade, websocket.New(h.stream))
	}
}

func (h *RenderHandler) enqueue(c *fiber.Ctx) error {
	var req dto.RenderEnqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.queue.Enqueue(requestContext(c), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to enqueue render jobs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to enqueue render jobs")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "render jobs enqueued", result)
}

func (h *RenderHandler) status(c *fiber.Ctx) error {
	assignmentID, err := parseAssignmentID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.queue.Status(requestContext(c), assignmentID, viewerFromContext(c))
	if err != nil {
		code, message := reportErrorStatus(err)
		if code >= fiber.StatusInternalServerError {
			requestLogger(h.logger, c).Error().Err(err).Uint("assignment_id", assignmentID).Msg("failed to load render status")
			return utils.SendError(c, code, "failed to load render status")
		}
		return utils.SendError(c, code, message)
	}

	return utils.SendSuccess(c, "render status", status)
}

// upgrade checks access over plain HTTP so refusals carry a proper status code.
func (h *RenderHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	assignmentID, err := parseAssignmentID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	viewer := viewerFromContext(c)
	if _, err := h.queue.Status(requestContext(c), assignmentID, viewer); err != nil {
		code, message := reportErrorStatus(err)
		return utils.SendError(c, code, message)
	}

	c.Locals("assignment_id", assignmentID)
	c.Locals("viewer", viewer)
	c.Locals("request_ctx", requestContext(c))
	return c.Next()
}

func (h *RenderHandler) stream(conn *websocket.Conn) {
	assignmentID, _ := conn.Locals("assignment_id").(uint)
	viewer, _ := conn.Locals("viewer").(dto.ReportViewer)
	ctx := requestContextFromLocals(conn)
	logger := h.logger.With().
		Uint("assignment_id", assignmentID).
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Logger()
	defer func() { _ = conn.Close() }()

	events, cleanup := h.events.Subscribe(assignmentID)
	defer cleanup()

	current, err := h.queue.Status(ctx, assignmentID, viewer)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load render status for stream")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "status unavailable"))
		return
	}
	if err := conn.WriteJSON(renderStreamMessage{Type: "status", Status: &current}); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(renderStreamPingInterval)
	defer ticker.Stop()

	logger.Debug().Msg("render stream connected")
	for {
		select {
		case <-closed:
			logger.Debug().Msg("render stream disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(renderStreamMessage{Type: "event", Event: &event}); err != nil {
				logger.Debug().Err(err).Msg("render stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
