package main

import (
	"context"
	"log"
	"os"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoraddb "github.com/agora-forum/agora-go-utils/agora-ddb"
	"github.com/agora-forum/agora-go-utils/agora-ws/notify"
	"github.com/agora-forum/agora-go-utils/agora-ws/postdao"
	"github.com/agora-forum/agora-go-utils/agora-ws/publish"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/urfave/cli/v2"
)

var service = agoracli.NewService("example-post-stream")

var notifier *notify.Notifier

func main() {
	app := agoracli.App(
		service,
		action,
		append(
			agoracli.CommonFlags,
			agoraddb.DDBFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	notifier = &notify.Notifier{
		Publisher: publish.Build(agoracli.CommonOpts.Env),
		Logger:    agoracli.Logger(service),
	}

	handler := agoraddb.NewHandler(service, onInsert, onUpdate, onDelete)

	return handler.Start()
}

func onInsert(ctx context.Context, newValue map[string]*dynamodb.AttributeValue) error {
	var post postdao.Post
	if err := agoraddb.ParseItem(newValue, &post); err != nil {
		return err
	}

	notifier.PostCreated(ctx, post)
	return nil
}

func onUpdate(ctx context.Context, oldValue, newValue map[string]*dynamodb.AttributeValue) error {
	var before, after postdao.Post
	if err := agoraddb.ParseItem(oldValue, &before); err != nil {
		return err
	}
	if err := agoraddb.ParseItem(newValue, &after); err != nil {
		return err
	}

	switch {
	case after.Deleted && !before.Deleted:
		notifier.PostDeleted(ctx, after)
	case after.Hidden != before.Hidden:
		notifier.VisibilityChanged(ctx, after)
	case len(after.Reactions) != len(before.Reactions):
		notifier.ReactionChanged(ctx, after)
	default:
		notifier.PostUpdated(ctx, after)
	}
	return nil
}

func onDelete(ctx context.Context, oldValue map[string]*dynamodb.AttributeValue) error {
	// Hard deletes only happen via TTL expiry; clients were already told about
	// the soft delete.
	return nil
}
