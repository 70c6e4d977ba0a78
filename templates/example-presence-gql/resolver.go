package main

import (
	"context"

	_ "embed"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoragql "github.com/agora-forum/agora-go-utils/agora-gql"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
)

//go:embed example.gql
var schema string

type Resolver struct {
	subs  *subscriptiondao.DAO
	links *userlinkdao.DAO
}

func (r *Resolver) Schema() string {
	return agoragql.MergeSchemas(schema, agoragql.Common)
}

func (r *Resolver) Config() *agoragql.BaseConfig {
	return &agoragql.BaseConfig{
		Logger:  agoracli.Logger(service),
		Service: service,
	}
}

func (r *Resolver) ViewerCount(ctx context.Context, args struct{ DiscussionID string }) (int32, error) {
	count, err := r.subs.Count(ctx, args.DiscussionID)
	if err != nil {
		return 0, err
	}
	return int32(count), nil
}

func (r *Resolver) Presence(ctx context.Context, args struct{ UserID string }) (*UserPresence, error) {
	connections, err := r.links.ConnectionsForUser(ctx, args.UserID)
	if err != nil {
		return nil, err
	}
	return &UserPresence{
		UserID:      args.UserID,
		Online:      len(connections) > 0,
		Connections: int32(len(connections)),
	}, nil
}

type UserPresence struct {
	UserID      string
	Online      bool
	Connections int32
}
