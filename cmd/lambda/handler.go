package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/gemmagate/pkg/service"
)

// WarmupSource identifies scheduled warmup events.
const WarmupSource = "warmup"

// WarmupResponse is returned for warmup events.
type WarmupResponse struct {
	Status      string `json:"status"`
	EngineReady bool   `json:"engine_ready"`
}

type handler struct {
	resolver *service.Resolver
	engines  *service.EngineCache
	logger   *logrus.Logger
}

func (h *handler) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Warmup detection comes first so scheduled pings never reach the resolver.
	if isWarmupEvent(event) {
		return h.handleWarmup(ctx), nil
	}

	var req service.TranslateRequest
	if err := json.Unmarshal(event, &req); err != nil {
		return service.ErrorResponse{
			Detail: fmt.Sprintf("Invalid request body: %v", err),
			Reason: string(service.ReasonInvalidInput),
		}, nil
	}

	res, err := h.resolver.Translate(ctx, req.Request())
	if err != nil {
		return service.NewErrorResponse(err), nil
	}
	return service.NewTranslateResponse(res), nil
}

// handleWarmup builds the engine so the next real invocation finds it ready.
func (h *handler) handleWarmup(ctx context.Context) WarmupResponse {
	if _, _, err := h.engines.Acquire(ctx, service.Auto()); err != nil {
		h.logger.WithError(err).Warn("Engine warmup failed")
		return WarmupResponse{Status: "cold", EngineReady: false}
	}
	return WarmupResponse{Status: "warm", EngineReady: true}
}

func isWarmupEvent(event json.RawMessage) bool {
	var probe struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(event, &probe); err != nil {
		return false
	}
	return probe.Source == WarmupSource
}
