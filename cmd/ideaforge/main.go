package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/ideaforge-backend/internal/app"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

var (
	cfg app.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ideaforge",
	Short: "IdeaForge research backend",
	Long: `IdeaForge stores ideas and researches them: every run fans out to web,
marketplace, code-host, community and AI-analysis workers whose progress
clients poll (or stream) until the idea returns to IDLE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err = app.NewLogger(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, probeCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
