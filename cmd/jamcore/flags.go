package main

import (
	"gopkg.in/urfave/cli.v1"
)

var VerboseFlag = cli.BoolFlag{
	Name:  "verbose, v",
	Usage: "log at debug level",
}

var ConfigFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}

var DataDirFlag = cli.StringFlag{
	Name:  "db",
	Usage: "directory of the block store, the importer resumes from its checkpoint",
}

var MetricsFileFlag = cli.StringFlag{
	Name:  "metrics-file",
	Usage: "write Prometheus metrics to this file after the import",
}

var LogFormatFlag = cli.StringFlag{
	Name:  "log-format",
	Usage: "console or json, overrides the config file",
}

var AnchorHashFlag = cli.StringFlag{
	Name:  "anchor-hash",
	Usage: "expected parent hash of the first block when no checkpoint exists",
}

var AnchorStateRootFlag = cli.StringFlag{
	Name:  "anchor-state-root",
	Usage: "expected parent state root of the first block when no checkpoint exists",
}
