package command

import (
	"context"
	"os"
	"time"

	"github.com/urfave/cli"

	clientv1 "github.com/coophouse/iocore/client/v1"
	"github.com/coophouse/iocore/cmd/iocored/common"
)

func cmdListPorts(cliContext *cli.Context) error {
	format, err := common.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}

	c := clientv1.New(addrFromFlag())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ports, err := c.ListPorts(ctx)
	if err != nil {
		return common.WrapOutputError(format, "list_ports_failed", err)
	}

	if format == common.OutputFormatJSON {
		return common.WriteJSON(ports)
	}
	ports.RenderTable(os.Stdout)
	return nil
}

func cmdListDataPoints(cliContext *cli.Context) error {
	format, err := common.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}

	c := clientv1.New(addrFromFlag())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dps, err := c.ListDataPoints(ctx)
	if err != nil {
		return common.WrapOutputError(format, "list_data_points_failed", err)
	}

	if format == common.OutputFormatJSON {
		return common.WriteJSON(dps)
	}
	dps.RenderTable(os.Stdout)
	return nil
}
