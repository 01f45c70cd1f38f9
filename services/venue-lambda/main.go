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
// Local runs use the HTTP server in the repository root instead
func main() {
	log := logger.Default()
	cfg := config.Load()

	a, err := bootstrap.Build(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to start venue lambda")
	}

	lambda.Start(a.Dispatch(bootstrap.Routes{
		"/api/venues": {
			http.MethodGet: a.VenueH.HandleGetVenues,
			http.MethodPut: a.VenueH.HandleUpsertVenue,
		},
		"/api/seat-map": {
			http.MethodGet: a.VenueH.HandleGetSeatMap,
			http.MethodPut: a.VenueH.HandleSetSeatMap,
		},
		"/api/seat-map/effective": {
			http.MethodGet: a.VenueH.HandleGetEffectiveMap,
		},
		"/api/seats/status": {
			http.MethodPut: a.VenueH.HandleUpdateSeatStatus,
		},
	}, log))
}
