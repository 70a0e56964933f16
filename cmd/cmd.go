package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/tabcell/tabcell/cmd/common"
)

type BuildArgs struct {
	Version string
	Date    string
	Commit  string
}

var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "tabcell",
		HelpName:              "tabcell",
		Usage:                 "A multi-session isolation engine for browsers.",
		Version:               bArgs.Version,
		UsageText:             "tabcell <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:   "daemon",
				Usage:  "runs the session engine in the foreground",
				Action: daemon,
				Flags: []cli.Flag{
					cli.BoolFlag{
						Name:  "stdio",
						Usage: "also accept native-messaging events on stdin/stdout",
					},
				},
			},
			{
				Name:               "create",
				Aliases:            []string{"c"},
				Usage:              "creates a new isolated session",
				Action:             create,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        CreateDescription,
			},
			{
				Name:               "list",
				Aliases:            []string{"l"},
				Usage:              "displays live sessions and their tabs",
				Action:             list,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ListDescription,
			},
			{
				Name:               "rename",
				Usage:              "sets a session's display name or color",
				Action:             rename,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Flags:              renameFlags,
			},
			{
				Name:               "delete",
				Aliases:            []string{"rm"},
				Usage:              "removes a session from every storage tier",
				Action:             remove,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DeleteDescription,
			},
			{
				Name:               "reset",
				Usage:              "destructively clears every session from every storage tier",
				Action:             reset,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
			},
			{
				Name:               "jar",
				Usage:              "prints a session's cookie jar",
				Action:             jar,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        JarDescription,
			},
			{
				Name:   "bind",
				Usage:  "binds a tab to a session",
				Action: bind,
			},
			{
				Name:   "unbind",
				Usage:  "releases a tab from its session",
				Action: unbind,
			},
			{
				Name:               "health",
				Usage:              "reports persistence tier health",
				Action:             health,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        HealthDescription,
			},
			{
				Name:   "restore-pref",
				Usage:  "enables or disables session auto-restoration",
				Action: restorePref,
			},
			{
				Name:   "tier",
				Usage:  "notifies the daemon of a subscription tier change",
				Action: tierChange,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of tabcell",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:      common.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
