package main

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bnema/mediafetch/internal/client"
)

const serverEnv = "MEDIAFETCH_SERVER"

func newRootCommand() *cobra.Command {
	var serverFlag string

	ctx := newCommandContext(&serverFlag)

	rootCmd := &cobra.Command{
		Use:           "mediafetch",
		Short:         "Fetch online media through a mediafetch server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Server URL (default $"+serverEnv+" or "+client.DefaultServer+")")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newGetCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newCookiesCommand(ctx))
	rootCmd.AddCommand(shortcut(newCookiesCheckCommand(ctx), "check-cookies [id]"))
	rootCmd.AddCommand(shortcut(newCookiesAddCommand(ctx), "upload-cookie <file>..."))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}

// shortcut exposes a cookies subcommand at the top level.
func shortcut(cmd *cobra.Command, use string) *cobra.Command {
	cmd.Use = use
	return cmd
}

type commandContext struct {
	serverFlag *string

	clientOnce sync.Once
	client     *client.Client
	clientErr  error
}

func newCommandContext(serverFlag *string) *commandContext {
	return &commandContext{serverFlag: serverFlag}
}

func (c *commandContext) serverURL() string {
	if c.serverFlag != nil {
		if s := strings.TrimSpace(*c.serverFlag); s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(os.Getenv(serverEnv)); s != "" {
		return s
	}
	return client.DefaultServer
}

func (c *commandContext) apiClient() (*client.Client, error) {
	c.clientOnce.Do(func() {
		c.client, c.clientErr = client.New(c.serverURL(), client.Options{StateDir: client.DefaultStateDir()})
	})
	return c.client, c.clientErr
}
