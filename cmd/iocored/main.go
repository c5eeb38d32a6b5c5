package main

import (
	"fmt"
	"io"
	"os"

	"github.com/coophouse/iocore/cmd/iocored/command"
	"github.com/coophouse/iocore/cmd/iocored/common"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	app := command.App()
	if err := app.Run(args); err != nil {
		if jsonErr, ok := common.AsJSONCommandError(err); ok {
			if writeErr := common.WriteJSONToWriter(stdout, jsonErr.Response()); writeErr != nil {
				_, _ = fmt.Fprintf(stderr, "✘ %s\n", writeErr)
			}
			return jsonErr.ExitStatus()
		}
		_, _ = fmt.Fprintf(stderr, "✘ %s\n", err)
		return 1
	}
	return 0
}
