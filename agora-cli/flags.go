package agoracli

import (
	"strings"

	"github.com/urfave/cli/v2"
)

var CommonOpts struct {
	Console bool
	Dry     bool
	Env     string
	Port    int
}

var ConsoleFlag = cli.BoolFlag{
	Name:        "console",
	Usage:       "whether to run in console mode or lambda mode",
	Value:       false,
	EnvVars:     []string{"CONSOLE"},
	Destination: &CommonOpts.Console,
}
var DryFlag = cli.BoolFlag{
	Name:        "dry",
	Usage:       "whether to actually persist any records or not",
	Value:       false,
	EnvVars:     []string{"DRY"},
	Destination: &CommonOpts.Dry,
}
var EnvFlag = cli.StringFlag{
	Name:        "env",
	Usage:       "environment",
	Value:       "local",
	EnvVars:     []string{"ENV"},
	Destination: &CommonOpts.Env,
}
var PortFlag = func(p int) *cli.IntFlag {
	return &cli.IntFlag{
		Name:        "port",
		Usage:       "Port to listen to, if running locally",
		Value:       p,
		EnvVars:     []string{"PORT"},
		Destination: &CommonOpts.Port,
	}
}

var CommonFlags = []cli.Flag{
	&ConsoleFlag,
	&DryFlag,
	&EnvFlag,
}

// StringFlag builds a string flag with the conventional env var name derived
// from the flag name, e.g. "stream-name" -> STREAM_NAME.
func StringFlag(name, usage string, destination *string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:        name,
		Usage:       usage,
		EnvVars:     []string{envVar(name)},
		Destination: destination,
	}
}

// BoolFlag builds a bool flag with the conventional env var name.
func BoolFlag(name, usage string, destination *bool) *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        name,
		Usage:       usage,
		EnvVars:     []string{envVar(name)},
		Destination: destination,
	}
}

func envVar(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
