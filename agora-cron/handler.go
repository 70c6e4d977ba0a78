// Package agoracron provides utilities for building scheduled Lambda
// functions, such as the stale-connection sweep.
package agoracron

import (
	"context"
	"encoding/json"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service agoracli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service agoracli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		logger:  agoracli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("running scheduled task")
	return h.runOnce(ctx)
}

func (h *Handler) Start() error {
	switch {
	case agoracli.CommonOpts.Console:
		return h.runOnce(context.Background())

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
