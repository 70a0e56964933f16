package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/tabcell/tabcell/cmd/common"
	"github.com/tabcell/tabcell/pkg/cellcli"
)

func jar(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" || id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := cellcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "jar", "new_client", err)
		return nil
	}
	defer client.Close()
	resp, err := client.GetJar(id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "jar", "get_jar", err)
		return nil
	}
	if len(resp.Cookies) == 0 {
		fmt.Printf("tabcell: jar of %s is empty\n", resp.SessionId)
		return nil
	}
	for _, c := range resp.Cookies {
		attrs := ""
		if c.Secure {
			attrs += " Secure"
		}
		if c.HttpOnly {
			attrs += " HttpOnly"
		}
		if c.SameSite != "" {
			attrs += " SameSite=" + c.SameSite
		}
		if !c.Expiry.IsZero() {
			attrs += " Expires=" + c.Expiry.Format("2006-01-02T15:04:05Z07:00")
		}
		fmt.Printf("%s%s %s=%s%s\n", c.Domain, c.Path, c.Name, c.Value, attrs)
	}
	return nil
}
