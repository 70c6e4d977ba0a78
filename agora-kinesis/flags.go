package agorakinesis

import (
	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	"github.com/urfave/cli/v2"
)

var KinesisOpts struct {
	StreamName string
	Replay     bool
}

var StreamNameFlag = agoracli.StringFlag("stream-name", "The kinesis stream to consume", &KinesisOpts.StreamName)
var ReplayFlag = agoracli.BoolFlag("replay", "Replay the stream from the trim horizon instead of tailing it", &KinesisOpts.Replay)

var KinesisFlags = []cli.Flag{
	StreamNameFlag,
	ReplayFlag,
}
