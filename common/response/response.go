package response

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/seatmap-services/common/errors"
)

// CORSHeaders are sent on every response and on preflight requests.
var CORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET,POST,PUT,DELETE,OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type,Authorization,X-Request-Id",
}

// Envelope is the body of every API response. Error responses carry the
// AppError code so clients can branch on it.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

const serializeFailure = `{"success":false,"error":"failed to serialize response","code":"E9001"}`

// JSON wraps data in a success envelope.
func JSON(statusCode int, data interface{}) (events.APIGatewayProxyResponse, error) {
	return write(statusCode, Envelope{Success: true, Data: data})
}

// Message returns a success envelope with only a message.
func Message(statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	return write(statusCode, Envelope{Success: true, Message: message})
}

// Error maps err to its HTTP status. Errors that are not AppErrors become 500
// with a generic message so internals are not leaked.
func Error(err error) (events.APIGatewayProxyResponse, error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("internal server error")
	}
	return write(appErr.HTTPStatus, Envelope{Error: appErr.Message, Code: string(appErr.Code)})
}

// BadRequest is a shortcut for request decoding failures.
func BadRequest(message string) (events.APIGatewayProxyResponse, error) {
	return Error(apperrors.New(apperrors.ErrCodeInvalidInput, message))
}

func write(statusCode int, body Envelope) (events.APIGatewayProxyResponse, error) {
	resp := events.APIGatewayProxyResponse{StatusCode: statusCode, Headers: headers()}
	payload, err := json.Marshal(body)
	if err != nil {
		resp.StatusCode = http.StatusInternalServerError
		resp.Body = serializeFailure
		return resp, nil
	}
	resp.Body = string(payload)
	return resp, nil
}

func headers() map[string]string {
	h := make(map[string]string, len(CORSHeaders)+1)
	for k, v := range CORSHeaders {
		h[k] = v
	}
	h["Content-Type"] = "application/json;charset=UTF-8"
	return h
}
