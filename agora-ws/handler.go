package agoraws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agora-forum/agora-go-utils/agora-ws/connectiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// DefaultConnTTL bounds a connection's registry membership; expiry is the
// system's passive timeout.
const DefaultConnTTL = 24 * time.Hour

// Handler handles WebSocket API Gateway events for the discussion realtime
// protocol.
type Handler struct {
	Connections *connectiondao.DAO
	Links       *userlinkdao.DAO
	Subs        *subscriptiondao.DAO
	Dispatcher  *Dispatcher
	Reaper      *Reaper
	Sync        *Reconciler
	Verifier    IdentityVerifier
	Poster      ConnectionPoster
	Logger      zerolog.Logger
	ConnTTL     time.Duration // TTL for connection records (default 24 hours)
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate
// handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	switch req.RequestContext.RouteKey {
	case "$connect":
		return h.handleConnect(ctx, logger, req)
	case "$disconnect":
		return h.handleDisconnect(ctx, logger, req)
	case "$default":
		return h.handleMessage(ctx, logger, req)
	default:
		logger.Warn().Str("route", req.RequestContext.RouteKey).Msg("unknown route")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	endpoint := callbackEndpoint(req)

	var userID string
	if token := bearerToken(req); token != "" && h.Verifier != nil {
		identity, err := h.Verifier.Verify(ctx, token)
		if err != nil {
			logger.Warn().Err(err).Msg("credential rejected, connecting anonymously")
		} else {
			userID = identity.UserID
		}
	}

	now := time.Now()
	expires := now.Add(h.connTTL())

	conn := connectiondao.Connection{
		ConnectionID: connID,
		Endpoint:     endpoint,
		UserID:       userID,
		ConnectedAt:  now.Unix(),
		LastSeen:     now.Unix(),
		TTL:          expires.Unix(),
	}
	if err := h.Connections.Put(ctx, conn); err != nil {
		logger.Error().Err(err).Msg("failed to store connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	if userID != "" {
		link := userlinkdao.Link{
			UserID:       userID,
			ConnectionID: connID,
			CreatedAt:    now.Unix(),
			TTL:          expires.Unix(),
		}
		if err := h.Links.Put(ctx, link); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("failed to store user link")
		}
	}

	logger.Info().Str("user_id", userID).Msg("connection established")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	h.Reaper.Reap(ctx, req.RequestContext.ConnectionID, "")
	logger.Info().Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	msg, err := ParseMessage(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid message")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}

	connID := req.RequestContext.ConnectionID
	endpoint := callbackEndpoint(req)

	if err := h.Connections.Touch(ctx, connID, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("failed to refresh last activity")
	}

	switch msg.Action {
	case ActionPing:
		if err := h.Poster.PostToConnection(ctx, endpoint, connID, PongMessage()); err != nil {
			logger.Error().Err(err).Msg("failed to send pong")
		}
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil

	case ActionJoinDiscussion:
		return h.handleJoin(ctx, logger, connID, endpoint, msg)

	case ActionLeaveDiscussion:
		return h.handleLeave(ctx, logger, connID, endpoint, msg)

	case ActionBroadcastPost, ActionTypingStart, ActionTypingStop:
		return h.handleBroadcast(ctx, logger, connID, endpoint, msg)

	case ActionSyncRequest:
		return h.handleSyncRequest(ctx, logger, connID, endpoint, msg)

	default:
		logger.Warn().Str("action", msg.Action).Msg("unhandled message action")
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}
}

func (h *Handler) handleJoin(ctx context.Context, logger zerolog.Logger, connID, endpoint string, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	if msg.DiscussionID == "" {
		h.reply(ctx, logger, endpoint, connID, ErrorMessage("missing discussionId"))
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	expires := time.Now().Add(h.connTTL())
	if err := h.Subs.Join(ctx, msg.DiscussionID, connID, h.userID(ctx, connID), endpoint, expires); err != nil {
		logger.Error().Err(err).Str("discussion_id", msg.DiscussionID).Msg("failed to store subscription")
		h.reply(ctx, logger, endpoint, connID, ErrorMessage("internal error"))
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Str("discussion_id", msg.DiscussionID).Msg("joined discussion")
	h.reply(ctx, logger, endpoint, connID, AckMessage(ActionJoinAck, msg.DiscussionID))
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleLeave(ctx context.Context, logger zerolog.Logger, connID, endpoint string, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	if msg.DiscussionID == "" {
		h.reply(ctx, logger, endpoint, connID, ErrorMessage("missing discussionId"))
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	if err := h.Subs.Leave(ctx, msg.DiscussionID, connID); err != nil {
		logger.Error().Err(err).Str("discussion_id", msg.DiscussionID).Msg("failed to delete subscription")
	}

	logger.Info().Str("discussion_id", msg.DiscussionID).Msg("left discussion")
	h.reply(ctx, logger, endpoint, connID, AckMessage(ActionLeaveAck, msg.DiscussionID))
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleBroadcast(ctx context.Context, logger zerolog.Logger, connID, endpoint string, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	if msg.DiscussionID == "" {
		h.reply(ctx, logger, endpoint, connID, ErrorMessage("missing discussionId"))
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	envelope := RawEnvelope(msg.Action, msg.Data, h.userID(ctx, connID))
	report, err := h.Dispatcher.Broadcast(ctx, msg.DiscussionID, envelope, connID)
	if err != nil {
		logger.Error().Err(err).Str("discussion_id", msg.DiscussionID).Msg("broadcast failed")
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	logger.Debug().
		Str("discussion_id", msg.DiscussionID).
		Int("delivered", report.Delivered).
		Int("reaped", report.Reaped).
		Msg("broadcast complete")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleSyncRequest(ctx context.Context, logger zerolog.Logger, connID, endpoint string, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	if msg.DiscussionID == "" {
		h.reply(ctx, logger, endpoint, connID, ErrorMessage("missing discussionId"))
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	var syncReq SyncRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &syncReq); err != nil {
			logger.Warn().Err(err).Msg("invalid sync request payload")
			h.reply(ctx, logger, endpoint, connID, ErrorMessage("invalid sync request payload"))
			return events.APIGatewayProxyResponse{StatusCode: 200}, nil
		}
	}

	since, err := syncReq.Since()
	if err != nil {
		logger.Warn().Err(err).Msg("invalid sync watermark")
		h.reply(ctx, logger, endpoint, connID, ErrorMessage(err.Error()))
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	missed := h.Sync.Reconcile(ctx, msg.DiscussionID, h.userID(ctx, connID), since)
	response, err := SyncResponseMessage(missed)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build sync response")
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	h.reply(ctx, logger, endpoint, connID, response)
	logger.Info().
		Str("discussion_id", msg.DiscussionID).
		Int("missed", len(missed)).
		Msg("sync response sent")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

// reply pushes a control message back to the requesting connection only.
func (h *Handler) reply(ctx context.Context, logger zerolog.Logger, endpoint, connID string, data []byte) {
	if err := h.Poster.PostToConnection(ctx, endpoint, connID, data); err != nil {
		logger.Error().Err(err).Msg("failed to reply to connection")
	}
}

// userID resolves the authenticated user of a connection, if any. A missing
// or expired registry record yields an anonymous sender.
func (h *Handler) userID(ctx context.Context, connID string) string {
	conn, err := h.Connections.Get(ctx, connID)
	if err != nil {
		return ""
	}
	return conn.UserID
}

func (h *Handler) connTTL() time.Duration {
	if h.ConnTTL > 0 {
		return h.ConnTTL
	}
	return DefaultConnTTL
}

func callbackEndpoint(req events.APIGatewayWebsocketProxyRequest) string {
	return fmt.Sprintf("https://%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage)
}

func bearerToken(req events.APIGatewayWebsocketProxyRequest) string {
	if token := req.QueryStringParameters["token"]; token != "" {
		return token
	}
	authz := req.Headers["Authorization"]
	if authz == "" {
		authz = req.Headers["authorization"]
	}
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
