// Package main is the AWS Lambda entry point of the gateway. The event is
// the HTTP translate body; the response is the translate result or an error
// body carrying the failure reason.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/gemmagate/pkg/app"
	"github.com/dasmlab/gemmagate/pkg/config"
)

func main() {
	v := config.NewViper("")
	if err := config.ReadConfigFile(v); err != nil {
		logrus.WithError(err).Fatal("Failed to read configuration")
	}

	// Lambda log output is collected by CloudWatch; JSON keeps it queryable.
	logger := app.NewLogger(v.GetString("log_level"), "json")

	a, err := app.New(v, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}

	h := &handler{resolver: a.Resolver, engines: a.Engines, logger: logger}
	lambda.Start(h.handleRequest)
}
