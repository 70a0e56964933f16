package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/tabcell/tabcell/cmd/common"
	"github.com/tabcell/tabcell/pkg/cellcli"
)

func create(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "create", "new_client", err)
		return nil
	}
	defer client.Close()
	resp, err := client.CreateSession(ctx.Args().First())
	if err != nil {
		common.PrintRuntimeErr(ctx, "create", "create_session", err)
		return nil
	}
	fmt.Printf("created session %s (color %s)\n", resp.SessionId, resp.Color)
	return nil
}

func list(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "new_client", err)
		return nil
	}
	defer client.Close()
	l, err := client.ListSessions()
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "list_sessions", err)
		return nil
	}
	if len(l.Sessions) == 0 {
		fmt.Println("tabcell: no live sessions")
		return nil
	}
	for _, s := range l.Sessions {
		name := s.Name
		if name == "" {
			name = "-"
		}
		state := ""
		if s.IsOrphan {
			state = " (orphan)"
		}
		fmt.Printf("%s  %-16s %s  tabs=%v  last=%s%s\n",
			s.SessionId, name, s.Color, s.TabIds,
			s.LastActivity.Format("2006-01-02 15:04:05"), state)
	}
	return nil
}

var (
	renameName  string
	renameColor string

	renameFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "name, n",
			Usage:       "new display name for the session",
			Destination: &renameName,
		},
		cli.StringFlag{
			Name:        "color, c",
			Usage:       "custom color for the session",
			Destination: &renameColor,
		},
	}
)

func rename(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" || id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if renameName == "" && renameColor == "" {
		return common.PrintErrWithCmdHelp(ctx,
			fmt.Errorf("nothing to change: pass --name or --color"))
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "rename", "new_client", err)
		return nil
	}
	defer client.Close()
	if _, err := client.UpdateSession(id, renameName, renameColor); err != nil {
		common.PrintRuntimeErr(ctx, "rename", "update_session", err)
		return nil
	}
	fmt.Println("updated", id)
	return nil
}

func remove(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" || id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "delete", "new_client", err)
		return nil
	}
	defer client.Close()
	resp, err := client.DeleteSession(id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "delete", "delete_session", err)
		if resp != nil {
			for tier, outcome := range resp.PerTier {
				fmt.Printf("  %s: %s\n", tier, outcome)
			}
		}
		return nil
	}
	fmt.Println("deleted", id)
	return nil
}

func reset(ctx *cli.Context) error {
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "reset", "new_client", err)
		return nil
	}
	defer client.Close()
	resp, err := client.ClearAll()
	if err != nil {
		common.PrintRuntimeErr(ctx, "reset", "clear_all", err)
		if resp != nil {
			for tier, outcome := range resp.PerTier {
				fmt.Printf("  %s: %s\n", tier, outcome)
			}
		}
		return nil
	}
	fmt.Printf("cleared %d session(s) from all tiers\n", resp.Cleared)
	return nil
}
