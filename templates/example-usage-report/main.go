package main

import (
	"context"
	"log"
	"os"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoraddb "github.com/agora-forum/agora-go-utils/agora-ddb"
	agorareport "github.com/agora-forum/agora-go-utils/agora-report"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = agoracli.NewService("example-usage-report")

var daos struct {
	subs  *subscriptiondao.DAO
	links *userlinkdao.DAO
}

func main() {
	app := agoracli.App(
		service,
		action,
		append(
			agoracli.CommonFlags,
			append(
				agoraddb.DDBFlags,
				agorareport.ReportFlags...,
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
	daos.subs = subscriptiondao.Build(api, env)
	daos.links = userlinkdao.Build(api, env)

	handler := agorareport.NewHandler(service, "presence-usage", generate)

	return handler.Start()
}

func generate(ctx context.Context) (interface{}, error) {
	var report struct {
		SubscribedConnections int `json:"subscribedConnections"`
		IdentifiedConnections int `json:"identifiedConnections"`
	}

	subscribed, err := daos.subs.AllConnectionIDs(ctx)
	if err != nil {
		return nil, err
	}
	report.SubscribedConnections = len(subscribed)

	identified, err := daos.links.AllConnectionIDs(ctx)
	if err != nil {
		return nil, err
	}
	report.IdentifiedConnections = len(identified)

	return report, nil
}
