package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatline/internal/configs"
	"chatline/internal/pkg/logx"
)

// cli carries the configuration shared by every command.
type cli struct {
	v   *viper.Viper
	cfg *configs.AppConfig
}

func newRootCmd() *cobra.Command {
	c := &cli{v: configs.New()}

	root := &cobra.Command{
		Use:           "chatline",
		Short:         "Terminal client for channel-based chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configs.LoadConfig(c.v)
			if err != nil {
				return err
			}
			c.cfg = cfg

			logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
			logx.Logger().Debug().
				Str("environment", cfg.Environment).
				Str("server_url", cfg.ServerURL).
				Str("socket_url", cfg.SocketURL()).
				Str("credential_file", cfg.CredentialFile).
				Msg("Configuration loaded successfully")
			return nil
		},
	}

	// Binding only fails for a flag that was never defined.
	cobra.CheckErr(configs.BindFlags(c.v, root.PersistentFlags()))

	root.AddCommand(
		c.newRunCmd(),
		c.newLoginCmd(),
		c.newRegisterCmd(),
		c.newLogoutCmd(),
	)
	return root
}
