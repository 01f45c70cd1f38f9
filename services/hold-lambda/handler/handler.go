package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/seatmap-services/common/response"
	"github.com/seatmap-services/services/hold-lambda/models"
	"github.com/seatmap-services/services/hold-lambda/usecase"
)

type HoldHandler struct {
	useCase *usecase.HoldUseCase
}

func NewHoldHandler(uc *usecase.HoldUseCase) *HoldHandler {
	return &HoldHandler{useCase: uc}
}

// HandleReserve - POST /api/holds
func (h *HoldHandler) HandleReserve(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req models.ReserveRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body")
	}

	hold, err := h.useCase.Reserve(ctx, req)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusCreated, hold)
}

// HandleRelease - DELETE /api/holds?seatId=&holderId=
func (h *HoldHandler) HandleRelease(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters
	if err := h.useCase.Release(ctx, params["seatId"], params["holderId"]); err != nil {
		return response.Error(err)
	}
	return response.Message(http.StatusOK, "Hold released")
}

// HandleCommit - POST /api/holds/commit
func (h *HoldHandler) HandleCommit(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req models.CommitRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body")
	}

	res, err := h.useCase.Commit(ctx, req)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, res)
}

// HandleGetHold - GET /api/holds?seatId=
func (h *HoldHandler) HandleGetHold(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	hold, err := h.useCase.GetHold(ctx, request.QueryStringParameters["seatId"])
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(http.StatusOK, hold)
}
