// Package agorakinesis provides utilities for building AWS Kinesis consumers.
// In Lambda mode the platform drives batches at us; in console mode the
// handler tails the stream directly, which is how the realtime dispatcher is
// run against a live environment from a laptop.
package agorakinesis

import (
	"context"
	"fmt"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"
)

type HandleMessageCallback func(ctx context.Context, record events.KinesisEventRecord) error

type Handler struct {
	Service agoracli.Service
	Logger  zerolog.Logger

	handleMessage HandleMessageCallback
}

func NewHandler(
	service agoracli.Service,
	handleMessage HandleMessageCallback,
) *Handler {
	return &Handler{
		Service:       service,
		Logger:        agoracli.Logger(service),
		handleMessage: handleMessage,
	}
}

func (h *Handler) Start() error {
	if !agoracli.CommonOpts.Console {
		lambda.Start(h.HandleKinesisEvent)
		return nil
	}
	return h.handleRealtime()
}

func (h *Handler) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	ctx = h.Logger.WithContext(ctx)
	for _, r := range event.Records {
		if err := h.handleMessage(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) handleRealtime() error {
	streamName := KinesisOpts.StreamName
	if streamName == "" {
		streamName = fmt.Sprintf("%v-agora-ws-events", agoracli.CommonOpts.Env)
	}

	var options []consumer.Option
	if KinesisOpts.Replay {
		options = append(options, consumer.WithShardIteratorType("TRIM_HORIZON"))
	} else {
		options = append(options, consumer.WithShardIteratorType("LATEST"))
	}
	c, err := consumer.New(streamName, options...)
	if err != nil {
		return err
	}

	ctx := h.Logger.WithContext(context.Background())
	callback := func(record *consumer.Record) error {
		er := events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{Data: record.Data},
		}
		return h.handleMessage(ctx, er)
	}
	h.Logger.Info().Str("streamName", streamName).Msg("listening")
	return c.Scan(ctx, callback)
}
