package coremain

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ensdns/ensdns/mlog"
)

type serverFlags struct {
	c   string
	dir string
}

var rootCmd = &cobra.Command{
	Use: "ensdns",
}

func init() {
	sf := new(serverFlags)
	startCmd := &cobra.Command{
		Use:   "start [-c config_file] [-d working_dir]",
		Short: "Start the resolution API server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return StartServer(sf)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	fs := startCmd.Flags()
	fs.StringVarP(&sf.c, "config", "c", "", "config file")
	fs.StringVarP(&sf.dir, "dir", "d", "", "working dir")
	rootCmd.AddCommand(startCmd)

	rf := new(serverFlags)
	resolveCmd := &cobra.Command{
		Use:   "resolve [-c config_file] name [type]",
		Short: "Resolve one name and print its records.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qtypeStr := "A"
			if len(args) == 2 {
				qtypeStr = args[1]
			}
			return resolveOnce(rf, args[0], qtypeStr)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	resolveCmd.Flags().StringVarP(&rf.c, "config", "c", "", "config file")
	rootCmd.AddCommand(resolveCmd)
}

func AddSubCmd(c *cobra.Command) {
	rootCmd.AddCommand(c)
}

func Run() error {
	return rootCmd.Execute()
}

func StartServer(sf *serverFlags) error {
	if len(sf.dir) > 0 {
		err := os.Chdir(sf.dir)
		if err != nil {
			return fmt.Errorf("failed to change the current working directory, %w", err)
		}
		mlog.L().Info("working directory changed", zap.String("path", sf.dir))
	}

	cfg, err := loadConfig(sf.c)
	if err != nil {
		return fmt.Errorf("fail to load config, %w", err)
	}

	if err := RunEnsDNS(cfg); err != nil {
		return fmt.Errorf("ensdns exited, %w", err)
	}
	return nil
}
