package command

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli"

	clientv1 "github.com/coophouse/iocore/client/v1"
	"github.com/coophouse/iocore/cmd/iocored/common"
)

func cmdReload(cliContext *cli.Context) error {
	format, err := common.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	if portFlag == "" {
		return common.WrapOutputError(format, "invalid_argument", errors.New("--port is required"))
	}

	c := clientv1.New(addrFromFlag())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.ReloadPort(ctx, portFlag); err != nil {
		checkOrWarn(false, "failed to reload %s: %v", portFlag, err)
		return common.WrapOutputError(format, "reload_failed", err)
	}

	if format == common.OutputFormatJSON {
		return common.WriteJSON(map[string]any{"port": portFlag, "status": "reloaded"})
	}
	checkOrWarn(true, "reloaded %s", portFlag)
	return nil
}
