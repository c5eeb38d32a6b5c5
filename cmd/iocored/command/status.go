package command

import (
	"context"
	"time"

	"github.com/urfave/cli"

	clientv1 "github.com/coophouse/iocore/client/v1"
	"github.com/coophouse/iocore/cmd/iocored/common"
)

func cmdStatus(cliContext *cli.Context) error {
	format, err := common.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}

	c := clientv1.New(addrFromFlag())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hz, err := c.Healthz(ctx)
	if err != nil {
		checkOrWarn(false, "iocored is not reachable at %s: %v", listenAddress, err)
		return common.WrapOutputError(format, "server_unreachable", err)
	}

	if format == common.OutputFormatJSON {
		return common.WriteJSON(hz)
	}
	checkOrWarn(true, "iocored is up (version %s)", hz.Version)
	return nil
}

func addrFromFlag() string {
	addr := listenAddress
	if addr == "" {
		addr = "localhost:8980"
	}
	return "http://" + trimScheme(addr)
}

func trimScheme(addr string) string {
	const httpPrefix = "http://"
	const httpsPrefix = "https://"
	if len(addr) >= len(httpPrefix) && addr[:len(httpPrefix)] == httpPrefix {
		return addr[len(httpPrefix):]
	}
	if len(addr) >= len(httpsPrefix) && addr[:len(httpsPrefix)] == httpsPrefix {
		return addr[len(httpsPrefix):]
	}
	return addr
}
