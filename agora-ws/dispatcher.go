package agoraws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agora-forum/agora-go-utils/agora-ws/connectiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/publish"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ConnectionPoster pushes a payload to a single WebSocket connection.
type ConnectionPoster interface {
	PostToConnection(ctx context.Context, endpoint, connectionID string, data []byte) error
}

// DeliveryReport summarizes one fan-out: deliveries that succeeded, transient
// failures left to self-heal, and connections reaped after a permanent
// failure.
type DeliveryReport struct {
	Delivered int
	Transient int
	Reaped    int
}

// Dispatcher fans broadcast envelopes out to discussion subscribers.
type Dispatcher struct {
	Subs        *subscriptiondao.DAO
	Links       *userlinkdao.DAO
	Connections *connectiondao.DAO
	Poster      ConnectionPoster
	Reaper      *Reaper
	Logger      zerolog.Logger
	Concurrency int // max concurrent PostToConnection calls (default 50)
}

// Broadcast resolves the subscriber set for the discussion and pushes the
// envelope to each subscriber concurrently, excluding the optional sender.
// One subscriber's failure never blocks or fails delivery to another: a Gone
// endpoint triggers the reaper, any other failure is logged and the
// connection left intact. The call completes once every attempt has settled.
func (d *Dispatcher) Broadcast(ctx context.Context, discussionID string, envelope Envelope, excludeConnectionID string) (DeliveryReport, error) {
	data, err := envelope.Marshal()
	if err != nil {
		return DeliveryReport{}, err
	}

	subs, err := d.Subs.SubscribersOf(ctx, discussionID)
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("resolving subscribers of discussion %v: %w", discussionID, err)
	}

	targets := make([]subscriptiondao.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.ConnectionID == excludeConnectionID {
			continue
		}
		targets = append(targets, sub)
	}
	if len(targets) == 0 {
		return DeliveryReport{}, nil
	}

	d.Logger.Debug().
		Str("discussion_id", discussionID).
		Str("action", envelope.Action).
		Int("subscribers", len(targets)).
		Msg("dispatching envelope")

	var delivered, transient, reaped int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency())

	for _, sub := range targets {
		sub := sub
		g.Go(func() error {
			switch err := d.Poster.PostToConnection(ctx, sub.Endpoint, sub.ConnectionID, data); {
			case err == nil:
				atomic.AddInt64(&delivered, 1)
			case IsGone(err):
				d.Logger.Info().
					Str("connection_id", sub.ConnectionID).
					Msg("connection gone, reaping")
				d.Reaper.Reap(ctx, sub.ConnectionID, discussionID)
				atomic.AddInt64(&reaped, 1)
			default:
				d.Logger.Warn().Err(err).
					Str("connection_id", sub.ConnectionID).
					Msg("transient delivery failure")
				atomic.AddInt64(&transient, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return DeliveryReport{
		Delivered: int(delivered),
		Transient: int(transient),
		Reaped:    int(reaped),
	}, nil
}

// SendToUser pushes an envelope to every live connection of a user,
// regardless of discussion membership. Used for user-scoped notifications.
func (d *Dispatcher) SendToUser(ctx context.Context, userID string, envelope Envelope) (DeliveryReport, error) {
	data, err := envelope.Marshal()
	if err != nil {
		return DeliveryReport{}, err
	}

	connectionIDs, err := d.Links.ConnectionsForUser(ctx, userID)
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("resolving connections for user %v: %w", userID, err)
	}
	if len(connectionIDs) == 0 {
		return DeliveryReport{}, nil
	}

	var delivered, transient, reaped int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency())

	for _, connectionID := range connectionIDs {
		connectionID := connectionID
		g.Go(func() error {
			conn, err := d.Connections.Get(ctx, connectionID)
			switch {
			case errors.Is(err, connectiondao.ErrNotFound):
				d.Reaper.Reap(ctx, connectionID, "")
				atomic.AddInt64(&reaped, 1)
				return nil
			case err != nil:
				d.Logger.Warn().Err(err).
					Str("connection_id", connectionID).
					Msg("transient registry lookup failure")
				atomic.AddInt64(&transient, 1)
				return nil
			}
			switch err := d.Poster.PostToConnection(ctx, conn.Endpoint, connectionID, data); {
			case err == nil:
				atomic.AddInt64(&delivered, 1)
			case IsGone(err):
				d.Reaper.Reap(ctx, connectionID, "")
				atomic.AddInt64(&reaped, 1)
			default:
				d.Logger.Warn().Err(err).
					Str("connection_id", connectionID).
					Msg("transient delivery failure")
				atomic.AddInt64(&transient, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return DeliveryReport{
		Delivered: int(delivered),
		Transient: int(transient),
		Reaped:    int(reaped),
	}, nil
}

// HandleKinesisEvent processes a batch of broadcast stream records, fanning
// each out to its discussion's subscribers. A malformed or failed record is
// logged and skipped rather than failing the whole batch.
func (d *Dispatcher) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	for _, record := range event.Records {
		if err := d.processRecord(ctx, record.Kinesis.Data); err != nil {
			d.Logger.Error().Err(err).
				Str("event_id", record.EventID).
				Msg("failed to process broadcast record")
		}
	}
	return nil
}

func (d *Dispatcher) processRecord(ctx context.Context, data []byte) error {
	var record publish.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("unmarshalling broadcast record: %w", err)
	}
	if record.Topic == "" {
		d.Logger.Warn().Msg("broadcast record has empty topic, skipping")
		return nil
	}

	envelope := Envelope{
		Action:    record.Action,
		Data:      record.Payload,
		Timestamp: record.Timestamp,
		UserID:    record.UserID,
	}
	_, err := d.Broadcast(ctx, record.Topic, envelope, record.ExcludeConnectionID)
	return err
}

func (d *Dispatcher) concurrency() int {
	if d.Concurrency > 0 {
		return d.Concurrency
	}
	return 50
}

// ManagementPoster is the production ConnectionPoster over the API Gateway
// Management API, caching one client per callback endpoint.
type ManagementPoster struct {
	mu      sync.RWMutex
	clients map[string]*apigatewaymanagementapi.ApiGatewayManagementApi
}

func (p *ManagementPoster) PostToConnection(ctx context.Context, endpoint, connectionID string, data []byte) error {
	client := p.client(endpoint)
	_, err := client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	return err
}

func (p *ManagementPoster) client(endpoint string) *apigatewaymanagementapi.ApiGatewayManagementApi {
	p.mu.RLock()
	if client, ok := p.clients[endpoint]; ok {
		p.mu.RUnlock()
		return client
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if client, ok := p.clients[endpoint]; ok {
		return client
	}
	if p.clients == nil {
		p.clients = make(map[string]*apigatewaymanagementapi.ApiGatewayManagementApi)
	}

	sess := session.Must(session.NewSession(aws.NewConfig().WithEndpoint(endpoint)))
	client := apigatewaymanagementapi.New(sess)
	p.clients[endpoint] = client
	return client
}

// IsGone checks if the error is a GoneException (HTTP 410), indicating the
// WebSocket connection no longer exists.
func IsGone(err error) bool {
	return err != nil &&
		(strings.Contains(err.Error(), "GoneException") ||
			strings.Contains(err.Error(), "410"))
}
