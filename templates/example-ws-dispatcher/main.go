package main

import (
	"context"
	"log"
	"os"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoraddb "github.com/agora-forum/agora-go-utils/agora-ddb"
	agorakinesis "github.com/agora-forum/agora-go-utils/agora-kinesis"
	agoraws "github.com/agora-forum/agora-go-utils/agora-ws"
	"github.com/agora-forum/agora-go-utils/agora-ws/connectiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = agoracli.NewService("example-ws-dispatcher")

func main() {
	app := agoracli.App(
		service,
		action,
		append(
			agoracli.CommonFlags,
			append(
				agoraddb.DDBFlags,
				agorakinesis.KinesisFlags...,
			)...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := agoraddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	env := agoracli.CommonOpts.Env
	logger := agoracli.Logger(service)
	connections := connectiondao.Build(api, env)
	links := userlinkdao.Build(api, env)
	subs := subscriptiondao.Build(api, env)
	poster := &agoraws.ManagementPoster{}

	dispatcher := &agoraws.Dispatcher{
		Subs:        subs,
		Links:       links,
		Connections: connections,
		Poster:      poster,
		Reaper: &agoraws.Reaper{
			Connections: connections,
			Links:       links,
			Subs:        subs,
			Logger:      logger,
		},
		Logger: logger,
	}

	handler := agorakinesis.NewHandler(service, func(ctx context.Context, record events.KinesisEventRecord) error {
		return dispatcher.HandleKinesisEvent(ctx, events.KinesisEvent{Records: []events.KinesisEventRecord{record}})
	})
	return handler.Start()
}
