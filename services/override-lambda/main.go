package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/seatmap-services/common/config"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/services/bootstrap"
)

// For AWS Lambda deployment
func main() {
	log := logger.Default()
	cfg := config.Load()

	a, err := bootstrap.Build(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to start override lambda")
	}

	lambda.Start(a.Dispatch(bootstrap.Routes{
		"/api/overrides": {
			http.MethodGet:  a.OverrideH.HandleListOverrides,
			http.MethodPost: a.OverrideH.HandleCreateOverride,
			http.MethodPut:  a.OverrideH.HandleUpdateOverride,
		},
		"/api/overrides/activate": {
			http.MethodPut: a.OverrideH.HandleActivateOverride,
		},
		"/api/overrides/deactivate": {
			http.MethodPut: a.OverrideH.HandleDeactivateOverride,
		},
	}, log))
}
