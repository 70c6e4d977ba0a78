package main

import (
	"log"
	"os"

	_ "embed"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoraddb "github.com/agora-forum/agora-go-utils/agora-ddb"
	agoragql "github.com/agora-forum/agora-go-utils/agora-gql"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = agoracli.NewService("example-presence-gql")

func main() {
	app := agoracli.App(
		service,
		action,
		append(
			agoracli.CommonFlags,
			append(
				agoraddb.DDBFlags,
				agoracli.PortFlag(5001),
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
	resolver := &Resolver{
		subs:  subscriptiondao.Build(api, env),
		links: userlinkdao.Build(api, env),
	}
	return agoragql.Webserver(resolver)
}
