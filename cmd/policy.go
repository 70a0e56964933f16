package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/tabcell/tabcell/cmd/common"
	"github.com/tabcell/tabcell/pkg/cellcli"
)

func restorePref(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg != "on" && arg != "off" {
		return common.PrintErrWithCmdHelp(ctx,
			fmt.Errorf("usage: tabcell restore-pref <on|off>"))
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "restore-pref", "new_client", err)
		return nil
	}
	defer client.Close()
	if _, err := client.SetAutoRestore(arg == "on"); err != nil {
		common.PrintRuntimeErr(ctx, "restore-pref", "set_auto_restore", err)
		return nil
	}
	fmt.Println("auto-restore preference:", arg)
	return nil
}

func tierChange(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) < 2 {
		return common.PrintErrWithCmdHelp(ctx,
			fmt.Errorf("usage: tabcell tier <old> <new>"))
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "tier", "new_client", err)
		return nil
	}
	defer client.Close()
	if _, err := client.NotifyTierChanged(args.Get(0), args.Get(1)); err != nil {
		common.PrintRuntimeErr(ctx, "tier", "notify_tier_changed", err)
		return nil
	}
	fmt.Printf("tier change %s -> %s acknowledged\n", args.Get(0), args.Get(1))
	return nil
}
