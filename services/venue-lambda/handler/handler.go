package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/jwt"
	shared "github.com/seatmap-services/common/models"
	"github.com/seatmap-services/common/response"
	"github.com/seatmap-services/services/venue-lambda/models"
	"github.com/seatmap-services/services/venue-lambda/usecase"
)

type VenueHandler struct {
	useCase *usecase.VenueUseCase
}

func NewVenueHandler(uc *usecase.VenueUseCase) *VenueHandler {
	return &VenueHandler{useCase: uc}
}

// HandleGetVenues - GET /api/venues
func (h *VenueHandler) HandleGetVenues(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	venues, err := h.useCase.ListVenues(ctx)
	if err != nil {
		return response.Error(err)
	}
	if venues == nil {
		venues = []shared.Venue{}
	}
	return response.JSON(http.StatusOK, venues)
}

// HandleUpsertVenue - PUT /api/venues
func (h *VenueHandler) HandleUpsertVenue(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !isAdmin(request) {
		return response.Error(apperrors.AccessDenied())
	}

	var req models.UpsertVenueRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body")
	}

	venue, err := h.useCase.UpsertVenue(ctx, req)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, venue)
}

// HandleGetSeatMap - GET /api/seat-map?venueId=
func (h *VenueHandler) HandleGetSeatMap(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	venueID := strings.TrimSpace(request.QueryStringParameters["venueId"])
	if venueID == "" {
		return response.Error(apperrors.MissingField("venueId"))
	}

	seatMap, err := h.useCase.GetSeatMap(ctx, venueID)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, seatMap)
}

// HandleSetSeatMap - PUT /api/seat-map?venueId=
// Body is the full tree; nodes left out are deleted.
func (h *VenueHandler) HandleSetSeatMap(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !isAdmin(request) {
		return response.Error(apperrors.AccessDenied())
	}

	venueID := strings.TrimSpace(request.QueryStringParameters["venueId"])
	if venueID == "" {
		return response.Error(apperrors.MissingField("venueId"))
	}

	var payload shared.SeatMapPayload
	if err := json.Unmarshal([]byte(request.Body), &payload); err != nil {
		return response.BadRequest("Invalid seat map payload")
	}

	result, err := h.useCase.SetSeatMap(ctx, venueID, payload)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, result)
}

// HandleGetEffectiveMap - GET /api/seat-map/effective?venueId=&eventId=&asOf=
func (h *VenueHandler) HandleGetEffectiveMap(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters
	venueID := strings.TrimSpace(params["venueId"])
	if venueID == "" {
		return response.Error(apperrors.MissingField("venueId"))
	}

	query := models.EffectiveMapQuery{EventID: strings.TrimSpace(params["eventId"])}
	if raw := strings.TrimSpace(params["asOf"]); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.Error(apperrors.InvalidInput("asOf", "asOf must be an RFC3339 timestamp"))
		}
		query.AsOf = &asOf
	}

	em, err := h.useCase.GetEffectiveMap(ctx, venueID, query)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, em)
}

// HandleUpdateSeatStatus - PUT /api/seats/status?seatId=
func (h *VenueHandler) HandleUpdateSeatStatus(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !isAdmin(request) {
		return response.Error(apperrors.AccessDenied())
	}

	var req models.UpdateSeatStatusRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body")
	}

	res, err := h.useCase.UpdateSeatStatus(ctx, strings.TrimSpace(request.QueryStringParameters["seatId"]), req)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, res)
}

func isAdmin(request events.APIGatewayProxyRequest) bool {
	return request.Headers["X-User-Role"] == jwt.RoleAdmin
}
