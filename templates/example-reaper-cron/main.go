package main

import (
	"context"
	"log"
	"os"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoracron "github.com/agora-forum/agora-go-utils/agora-cron"
	agoraddb "github.com/agora-forum/agora-go-utils/agora-ddb"
	agoraws "github.com/agora-forum/agora-go-utils/agora-ws"
	"github.com/agora-forum/agora-go-utils/agora-ws/connectiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = agoracli.NewService("example-reaper-cron")

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
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := agoraddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	env := agoracli.CommonOpts.Env
	logger := agoracli.Logger(service)
	reaper := &agoraws.Reaper{
		Connections: connectiondao.Build(api, env),
		Links:       userlinkdao.Build(api, env),
		Subs:        subscriptiondao.Build(api, env),
		Logger:      logger,
	}

	handler := agoracron.NewHandler(service, func(ctx context.Context) error {
		reaped, err := reaper.Sweep(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("reaped", reaped).Msg("sweep complete")
		return nil
	})
	return handler.Start()
}
