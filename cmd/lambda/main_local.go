//go:build !lambda

package main

import (
	"flag"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Without the lambda tag the function is served as a plain HTTP endpoint for local testing:
//
//	go run ./cmd/lambda -addr :8080
//	curl -d '{"gachaId":"1","target":["featured","Iron Sword"],"count":1000000}' localhost:8080
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	h, err := newHandler(logger)
	if err != nil {
		logger.Fatal("load master data", zap.Error(err))
	}
	srv := &http.Server{Addr: *addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("listening", zap.String("addr", *addr))
	logger.Fatal("serve", zap.Error(srv.ListenAndServe()))
}

// ServeHTTP adapts a plain HTTP request to a function URL event.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, _ := h.handle(r.Context(), events.LambdaFunctionURLRequest{Body: string(body)})
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
