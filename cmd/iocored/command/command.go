// Package command assembles the iocored CLI's urfave/cli command tree.
package command

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/coophouse/iocore/pkg/config"
	"github.com/coophouse/iocore/version"
)

const usage = `
# start the core daemon (data-point manager + status API)
iocored run

# check the daemon's status
iocored status

# list configured ports and data points
iocored list-ports
iocored list-data-points

# recover a slave that tripped the skip policy
iocored unskip --port line1 --slave 3

# reopen one port's transport
iocored reload --port line1
`

const (
	checkMark   = "\033[32m✔\033[0m"
	warningSign = "\033[31m✘\033[0m"
)

var (
	logLevel string
	logFile  string
	dataDir  string

	listenAddress string
	metricsPeriod string

	simulate bool

	outputFormat string

	portFlag  string
	slaveFlag int
)

// App builds the iocored urfave/cli application.
func App() *cli.App {
	app := cli.NewApp()
	app.Name = "iocored"
	app.Version = version.Version
	app.Usage = usage
	app.Description = "industrial fieldbus I/O core: Modbus/S7 data-point manager and status API"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "data-dir",
			Usage:       "override the data directory (default: ~/.iocore)",
			Destination: &dataDir,
		},
		cli.StringFlag{
			Name:        "output,o",
			Usage:       "output format [plain, json]",
			Destination: &outputFormat,
			Value:       "plain",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "start the data-point manager and status API",
			Action: cmdRun,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "log-level,l",
					Usage:       "log level [debug, info, warn, error]",
					Destination: &logLevel,
					Value:       "info",
				},
				cli.StringFlag{
					Name:        "log-file",
					Usage:       "log file path (empty logs to stderr)",
					Destination: &logFile,
				},
				cli.StringFlag{
					Name:        "listen-address",
					Usage:       "status API listen address",
					Destination: &listenAddress,
					Value:       config.DefaultAddress,
				},
				cli.StringFlag{
					Name:        "metrics-interval",
					Usage:       "prometheus sampling interval (e.g. 5s)",
					Destination: &metricsPeriod,
					Value:       "5s",
				},
				cli.BoolFlag{
					Name:        "simulate",
					Usage:       "open every configured port against the simulated transport instead of real hardware",
					Destination: &simulate,
				},
			},
		},
		{
			Name:   "status",
			Usage:  "check whether the daemon is up",
			Action: cmdStatus,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "listen-address",
					Usage:       "status API address to query",
					Destination: &listenAddress,
					Value:       config.DefaultAddress,
				},
			},
		},
		{
			Name:   "list-ports",
			Usage:  "list every configured port's live connection state",
			Action: cmdListPorts,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "listen-address",
					Destination: &listenAddress,
					Value:       config.DefaultAddress,
				},
			},
		},
		{
			Name:   "list-data-points",
			Usage:  "list every configured data point",
			Action: cmdListDataPoints,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "listen-address",
					Destination: &listenAddress,
					Value:       config.DefaultAddress,
				},
			},
		},
		{
			Name:   "unskip",
			Usage:  "clear one slave's skip state without reopening the port",
			Action: cmdUnskip,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "port", Destination: &portFlag},
				cli.IntFlag{Name: "slave", Destination: &slaveFlag},
				cli.StringFlag{
					Name:        "listen-address",
					Destination: &listenAddress,
					Value:       config.DefaultAddress,
				},
			},
		},
		{
			Name:   "reload",
			Usage:  "reopen one port's transport, clearing its skip state",
			Action: cmdReload,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "port", Destination: &portFlag},
				cli.StringFlag{
					Name:        "listen-address",
					Destination: &listenAddress,
					Value:       config.DefaultAddress,
				},
			},
		},
	}

	return app
}

func checkOrWarn(ok bool, format string, args ...any) {
	mark := checkMark
	if !ok {
		mark = warningSign
	}
	fmt.Printf("%s %s\n", mark, fmt.Sprintf(format, args...))
}
