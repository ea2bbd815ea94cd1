//go:build lambda

package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	h, err := newHandler(logger)
	if err != nil {
		logger.Fatal("load master data", zap.Error(err))
	}
	lambda.Start(h.handle)
}
