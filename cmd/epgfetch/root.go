package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qrv0/epgfetch/internal/config"
	"github.com/qrv0/epgfetch/internal/downloader"
	"github.com/qrv0/epgfetch/internal/logtrace"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "epgfetch",
		Short: "Download the EPG guide archive to local disk",
		Long: `epgfetch downloads the gzip-compressed XMLTV guide from ` + config.DefaultURL + `
and saves it as ` + config.DefaultOutputPath + `.

Only a 200 response is saved. Any other status prints the code and leaves
the output file untouched. Network and filesystem errors exit non-zero.`,
		Args:          cobra.NoArgs,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			if err := logtrace.Setup(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx := logtrace.CtxWithCorrelationID(cmd.Context(), uuid.NewString())
			logtrace.Debug(ctx, "config loaded", logtrace.Fields{logtrace.FieldConfig: cfg.Fields()})

			res, err := downloader.New(downloader.WithTimeout(cfg.Timeout)).FetchAndSave(ctx, cfg.URL, cfg.OutputPath)
			if err != nil {
				return errors.Wrap(err, "download")
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "optional YAML config file")
	flags.String("url", config.DefaultURL, "archive URL")
	flags.StringP("output", "o", config.DefaultOutputPath, "output file; its directory must exist")
	flags.Duration("timeout", 0, "request timeout, 0 waits forever")
	flags.String("log-level", config.DefaultLogLevel, "log level for stderr diagnostics")

	for key, name := range map[string]string{
		config.KeyURL:        "url",
		config.KeyOutputPath: "output",
		config.KeyTimeout:    "timeout",
		config.KeyLogLevel:   "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}
