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
// Expired holds are swept by the server process; an expired hold never blocks
// a reserve even when no sweep has run.
func main() {
	log := logger.Default()
	cfg := config.Load()

	a, err := bootstrap.Build(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to start hold lambda")
	}

	lambda.Start(a.Dispatch(bootstrap.Routes{
		"/api/holds": {
			http.MethodGet:    a.HoldH.HandleGetHold,
			http.MethodPost:   a.HoldH.HandleReserve,
			http.MethodDelete: a.HoldH.HandleRelease,
		},
		"/api/holds/commit": {
			http.MethodPost: a.HoldH.HandleCommit,
		},
	}, log))
}
