package main

import (
	"log"
	"os"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoraddb "github.com/agora-forum/agora-go-utils/agora-ddb"
	agorasecret "github.com/agora-forum/agora-go-utils/agora-secret"
	agoraws "github.com/agora-forum/agora-go-utils/agora-ws"
	"github.com/agora-forum/agora-go-utils/agora-ws/connectiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/postdao"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = agoracli.NewService("example-ws-handler")

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
	var auth struct {
		SigningKey string `json:"signingKey"`
	}
	if err := agorasecret.LoadSecret(sess, agorasecret.AuthSecretName(env), &auth); err != nil {
		return err
	}

	logger := agoracli.Logger(service)
	connections := connectiondao.Build(api, env)
	links := userlinkdao.Build(api, env)
	subs := subscriptiondao.Build(api, env)
	posts := postdao.Build(api, env)
	poster := &agoraws.ManagementPoster{}
	reaper := &agoraws.Reaper{
		Connections: connections,
		Links:       links,
		Subs:        subs,
		Logger:      logger,
	}

	handler := &agoraws.Handler{
		Connections: connections,
		Links:       links,
		Subs:        subs,
		Dispatcher: &agoraws.Dispatcher{
			Subs:        subs,
			Links:       links,
			Connections: connections,
			Poster:      poster,
			Reaper:      reaper,
			Logger:      logger,
		},
		Reaper:   reaper,
		Sync:     &agoraws.Reconciler{Posts: posts, Logger: logger},
		Verifier: &agoraws.HMACVerifier{Secret: []byte(auth.SigningKey)},
		Poster:   poster,
		Logger:   logger,
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
