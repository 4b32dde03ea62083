package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"portal-realtime/internal/dto"
	"portal-realtime/internal/entities"
	"portal-realtime/internal/services"
	"portal-realtime/pkg/api"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/middleware"
	"portal-realtime/pkg/service"
)

type ChannelAuthorizer interface {
	Authorize(ctx context.Context, claims *service.JwtCustomClaim, channel string) error
}

type EventController struct {
	relayService services.RelayServiceInterface
	authorizer   ChannelAuthorizer
	logger       *zap.Logger
}

func NewEventController(relayService services.RelayServiceInterface, authorizer ChannelAuthorizer, logger *zap.Logger) *EventController {
	return &EventController{relayService: relayService, authorizer: authorizer, logger: logger}
}

// Publish accepts an event from a backend publisher.
func (c *EventController) Publish(ctx echo.Context) error {
	var in dto.PublishEventDTO
	if err := ctx.Bind(&in); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "malformed body", err, nil), c.logger)
	}
	if err := ctx.Validate(&in); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, err.Error(), apperrors.ErrBadRequest, nil), c.logger)
	}

	res, err := c.relayService.Publish(ctx.Request().Context(), in)
	if err != nil {
		return api.ErrorResponse(ctx, err, c.logger)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "published", res)
}

func (c *EventController) authorize(ctx echo.Context, channelName string) error {
	claims, err := middleware.ClaimsFromContext(ctx.Request().Context())
	if err != nil {
		return apperrors.ErrUnauthorized
	}
	return c.authorizer.Authorize(ctx.Request().Context(), claims, channelName)
}

// History lists events after a seq for a subscriber catching up over HTTP.
func (c *EventController) History(ctx echo.Context) error {
	var q dto.HistoryQueryDTO
	if err := ctx.Bind(&q); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "malformed query", err, nil), c.logger)
	}
	if err := ctx.Validate(&q); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, err.Error(), apperrors.ErrBadRequest, nil), c.logger)
	}
	if err := c.authorize(ctx, q.Channel); err != nil {
		return api.ErrorResponse(ctx, err, c.logger)
	}

	list, err := c.relayService.History(ctx.Request().Context(), q.Channel, q.After, q.Limit)
	if err != nil {
		return api.ErrorResponse(ctx, err, c.logger)
	}
	out := make([]dto.ChannelEventDTO, 0, len(list))
	var next int64
	for _, e := range list {
		out = append(out, dto.ChannelEventToDTO(e))
		next = e.Seq
	}
	return api.SuccessList(ctx, "events", out, next)
}

var exportHeaders = []string{"Seq", "Event", "Actor", "Created At", "Payload"}

// Export streams the channel's event log as an xlsx workbook.
func (c *EventController) Export(ctx echo.Context) error {
	channelName := ctx.Param("channel")
	if err := c.authorize(ctx, channelName); err != nil {
		return api.ErrorResponse(ctx, err, c.logger)
	}
	list, err := c.relayService.Export(ctx.Request().Context(), channelName)
	if err != nil {
		return api.ErrorResponse(ctx, err, c.logger)
	}
	return c.respondWithXLSX(ctx, channelName, list)
}

func eventRow(e entities.ChannelEvent) []interface{} {
	return []interface{}{
		e.Seq,
		e.Event,
		e.ActorID.String,
		e.CreatedAt.UTC().Format("02.01.2006 15:04:05"),
		string(e.Data),
	}
}

func (c *EventController) respondWithXLSX(ctx echo.Context, channelName string, list []entities.ChannelEvent) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Events"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return api.ErrorResponse(ctx, err, c.logger)
	}
	_ = f.SetSheetRow(sheet, "A1", &exportHeaders)
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", "E1", style)
	}

	for i, e := range list {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := eventRow(e)
		_ = f.SetSheetRow(sheet, cell, &row)
	}
	_ = f.SetColWidth(sheet, "B", "C", 20)
	_ = f.SetColWidth(sheet, "D", "D", 22)
	_ = f.SetColWidth(sheet, "E", "E", 80)

	fileName := fmt.Sprintf("%s_%s.xlsx", channelName, time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
