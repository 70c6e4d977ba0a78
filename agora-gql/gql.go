// Package agoragql provides GraphQL server utilities with built-in CORS,
// logging middleware, and common GraphQL scalar types.
//
// This package includes server setup with sensible defaults, custom scalar
// types (Instant, JSON), and schema introspection controls.
package agoragql

import (
	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
)

func AllowIntrospection() bool {
	return agoracli.CommonOpts.Env != "production" || agoracli.CommonOpts.Console
}

type Resolver interface {
	Schema() string
	Config() *BaseConfig
}
