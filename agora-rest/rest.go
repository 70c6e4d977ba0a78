// Package agorarest provides REST API utilities with CORS support and common
// middleware, used by the presence introspection surface.
package agorarest

import (
	"fmt"
	"net/http"

	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"
)

func Middlewares(service agoracli.Service, routes chi.Router) chi.Router {
	routes.Use(
		withCORS(),
		withLogger(agoracli.Logger(service)),
		middleware.Recoverer,
	)
	return routes
}

func Webserver(service agoracli.Service, routes chi.Router) error {
	logger := agoracli.Logger(service)

	if agoracli.CommonOpts.Console {
		logger.Info().Int("port", agoracli.CommonOpts.Port).Msg("starting http server")
		addr := fmt.Sprintf(":%v", agoracli.CommonOpts.Port)
		return http.ListenAndServe(addr, routes)
	}

	lambda.Start(apigateway.Wrap(routes, agoracli.CommonOpts.Env))
	return nil
}

func CacheControl(handler http.HandlerFunc, maxAge int) http.HandlerFunc {
	value := fmt.Sprintf("max-age=%v", maxAge)
	return func(w http.ResponseWriter, req *http.Request) {
		req.Header.Set("Cache-Control", value)
		handler.ServeHTTP(w, req)
	}
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
