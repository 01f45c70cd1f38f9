package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/jwt"
	"github.com/seatmap-services/common/response"
	"github.com/seatmap-services/services/override-lambda/models"
	"github.com/seatmap-services/services/override-lambda/usecase"
)

type OverrideHandler struct {
	useCase *usecase.OverrideUseCase
}

func NewOverrideHandler(uc *usecase.OverrideUseCase) *OverrideHandler {
	return &OverrideHandler{useCase: uc}
}

// HandleListOverrides - GET /api/overrides?venueId=  or  GET /api/overrides?id=
func (h *OverrideHandler) HandleListOverrides(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !isAdmin(request) {
		return response.Error(apperrors.AccessDenied())
	}

	if id := strings.TrimSpace(request.QueryStringParameters["id"]); id != "" {
		o, err := h.useCase.Get(ctx, id)
		if err != nil {
			return response.Error(err)
		}
		return response.JSON(http.StatusOK, o)
	}

	list, err := h.useCase.List(ctx, strings.TrimSpace(request.QueryStringParameters["venueId"]))
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, list)
}

// HandleCreateOverride - POST /api/overrides
func (h *OverrideHandler) HandleCreateOverride(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !isAdmin(request) {
		return response.Error(apperrors.AccessDenied())
	}

	var req models.CreateOverrideRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body")
	}

	o, err := h.useCase.Create(ctx, req)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusCreated, o)
}

// HandleUpdateOverride - PUT /api/overrides?id=
func (h *OverrideHandler) HandleUpdateOverride(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !isAdmin(request) {
		return response.Error(apperrors.AccessDenied())
	}

	var req models.UpdateOverrideRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body")
	}

	o, err := h.useCase.Update(ctx, strings.TrimSpace(request.QueryStringParameters["id"]), req)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, o)
}

// HandleActivateOverride - PUT /api/overrides/activate?id=
func (h *OverrideHandler) HandleActivateOverride(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.setActive(ctx, request, true)
}

// HandleDeactivateOverride - PUT /api/overrides/deactivate?id=
func (h *OverrideHandler) HandleDeactivateOverride(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.setActive(ctx, request, false)
}

func (h *OverrideHandler) setActive(ctx context.Context, request events.APIGatewayProxyRequest, active bool) (events.APIGatewayProxyResponse, error) {
	if !isAdmin(request) {
		return response.Error(apperrors.AccessDenied())
	}

	id := strings.TrimSpace(request.QueryStringParameters["id"])
	var err error
	if active {
		_, err = h.useCase.Activate(ctx, id)
	} else {
		_, err = h.useCase.Deactivate(ctx, id)
	}
	if err != nil {
		return response.Error(err)
	}
	if active {
		return response.Message(http.StatusOK, "Override activated")
	}
	return response.Message(http.StatusOK, "Override deactivated")
}

func isAdmin(request events.APIGatewayProxyRequest) bool {
	return request.Headers["X-User-Role"] == jwt.RoleAdmin
}
