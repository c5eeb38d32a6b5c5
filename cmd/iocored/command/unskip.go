package command

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli"

	clientv1 "github.com/coophouse/iocore/client/v1"
	"github.com/coophouse/iocore/cmd/iocored/common"
)

func cmdUnskip(cliContext *cli.Context) error {
	format, err := common.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	if portFlag == "" {
		return common.WrapOutputError(format, "invalid_argument", errors.New("--port is required"))
	}

	c := clientv1.New(addrFromFlag())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.UnskipSlave(ctx, portFlag, slaveFlag); err != nil {
		checkOrWarn(false, "failed to unskip slave %d on %s: %v", slaveFlag, portFlag, err)
		return common.WrapOutputError(format, "unskip_failed", err)
	}

	if format == common.OutputFormatJSON {
		return common.WriteJSON(map[string]any{"port": portFlag, "slave": slaveFlag, "status": "unskipped"})
	}
	checkOrWarn(true, "unskipped slave %d on %s", slaveFlag, portFlag)
	return nil
}
