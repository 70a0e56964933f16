package cmd

import (
	"fmt"
	"sort"

	"github.com/urfave/cli"

	"github.com/tabcell/tabcell/cmd/common"
	"github.com/tabcell/tabcell/pkg/cellcli"
)

func health(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "health", "new_client", err)
		return nil
	}
	defer client.Close()
	resp, err := client.GetPersistenceHealth()
	if err != nil {
		common.PrintRuntimeErr(ctx, "health", "get_health", err)
		return nil
	}
	names := make([]string, 0, len(resp.Tiers))
	for name := range resp.Tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := resp.Tiers[name]
		if t.Available {
			fmt.Printf("%-8s ok\n", name)
		} else {
			fmt.Printf("%-8s unavailable: %s\n", name, t.LastError)
		}
	}
	fmt.Printf("malformed cookies dropped: %d\n", resp.Diagnostics.MalformedCookiesDropped)
	fmt.Printf("events dispatched:         %d\n", resp.Diagnostics.EventsDispatched)
	return nil
}
