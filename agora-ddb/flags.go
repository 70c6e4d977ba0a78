package agoraddb

import (
	agoracli "github.com/agora-forum/agora-go-utils/agora-cli"
	"github.com/urfave/cli/v2"
)

var DDBOpts struct {
	DAXCluster string
	DAXRegion  string
	TableName  string
}

var DAXClusterFlag = agoracli.StringFlag("dax-cluster", "The DAX cluster to connect to", &DDBOpts.DAXCluster)
var DAXRegionFlag = agoracli.StringFlag("dax-region", "The region the DAX cluster lives in", &DDBOpts.DAXRegion)
var TableNameFlag = agoracli.StringFlag("table-name", "The table name to read streams from", &DDBOpts.TableName)

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	DAXRegionFlag,
	TableNameFlag,
}
