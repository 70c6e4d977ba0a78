package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	agoraddb "github.com/agora-forum/agora-go-utils/agora-ddb"
	agorarest "github.com/agora-forum/agora-go-utils/agora-rest"
	"github.com/agora-forum/agora-go-utils/agora-ws/subscriptiondao"
	"github.com/agora-forum/agora-go-utils/agora-ws/userlinkdao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
)

var service = agoracli.NewService("example-presence-api")

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
	subs := subscriptiondao.Build(api, env)
	links := userlinkdao.Build(api, env)

	routes := agorarest.Middlewares(service, chi.NewRouter())
	routes.Get("/presence/discussions/{discussionID}", func(w http.ResponseWriter, req *http.Request) {
		count, err := subs.Count(req.Context(), chi.URLParam(req, "discussionID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int64{"viewerCount": count})
	})
	routes.Get("/presence/users/{userID}", func(w http.ResponseWriter, req *http.Request) {
		connections, err := links.ConnectionsForUser(req.Context(), chi.URLParam(req, "userID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"online":      len(connections) > 0,
			"connections": len(connections),
		})
	})

	return agorarest.Webserver(service, routes)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
