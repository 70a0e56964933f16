package cmd

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"github.com/tabcell/tabcell/cmd/common"
	"github.com/tabcell/tabcell/pkg/cellcli"
)

func bind(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) < 2 {
		return common.PrintErrWithCmdHelp(ctx,
			fmt.Errorf("usage: tabcell bind <tab-id> <session-id>"))
	}
	tabId, err := strconv.ParseInt(args.Get(0), 10, 64)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, fmt.Errorf("invalid tab id: %s", args.Get(0)))
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "bind", "new_client", err)
		return nil
	}
	defer client.Close()
	if _, err := client.BindTab(tabId, args.Get(1)); err != nil {
		common.PrintRuntimeErr(ctx, "bind", "bind_tab", err)
		return nil
	}
	fmt.Printf("tab %d bound to %s\n", tabId, args.Get(1))
	return nil
}

func unbind(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" || arg == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	tabId, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, fmt.Errorf("invalid tab id: %s", arg))
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "unbind", "new_client", err)
		return nil
	}
	defer client.Close()
	if _, err := client.UnbindTab(tabId); err != nil {
		common.PrintRuntimeErr(ctx, "unbind", "unbind_tab", err)
		return nil
	}
	fmt.Printf("tab %d released\n", tabId)
	return nil
}
