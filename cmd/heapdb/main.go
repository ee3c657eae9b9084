package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tuannm99/heapdb/internal"
	"github.com/tuannm99/heapdb/internal/storage"
)

var version = "dev"

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:               "heapdb",
	Short:             "Heap-file storage engine utilities",
	PersistentPreRunE: setup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the heapdb version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("heapdb", version)
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages <heapfile>",
	Short: "Print the page count of a heap file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		fmt.Println(info.Size() / int64(storage.PageSize()))
		return nil
	},
}

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config-file", "", "`file` to load config from")
	fs.StringVar(&logLevel, "log-level", "info",
		"log level: trace, debug, info, warn, error, fatal, or panic")

	rootCmd.AddCommand(versionCmd, pagesCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("heapdb: %s", err)
	}
	log.SetLevel(ll)

	cmd.Flags().Visit(func(flg *pflag.Flag) {
		log.WithFields(log.Fields{
			"flag":  flg.Name,
			"value": flg.Value.String(),
		}).Debug("flag set")
	})

	if configFile != "" {
		cfg, err := internal.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("heapdb: %s", err)
		}
		if cfg.Storage.PageSize > 0 {
			storage.SetPageSize(cfg.Storage.PageSize)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
