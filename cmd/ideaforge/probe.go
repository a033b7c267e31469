package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/ideaforge-backend/internal/app"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
)

var (
	probeTitle   string
	probeText    string
	probeTimeout time.Duration
)

// probe runs one worker against the live provider without touching the
// database, printing what a run would persist.
var probeCmd = &cobra.Command{
	Use:   "probe <worker-type>",
	Short: "Run one research worker once and print its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wt, err := ideas.ParseWorkerType(args[0])
		if err != nil {
			return err
		}
		if strings.TrimSpace(probeTitle) == "" {
			return fmt.Errorf("--title is required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
		defer cancel()

		clients, err := app.NewClients(ctx, log, cfg)
		if err != nil {
			return err
		}
		reg, err := app.BuildRegistry(log, clients)
		if err != nil {
			return err
		}
		h, ok := reg.Get(wt)
		if !ok {
			return fmt.Errorf("worker %s is not available with the current configuration", wt)
		}
		item := ideas.WorkItem{
			IdeaID:     uuid.New(),
			RunID:      uuid.New(),
			ProgressID: uuid.New(),
			Title:      probeTitle,
			Content:    probeText,
			WorkerType: wt,
		}
		out, err := h.Run(jobrt.DetachedContext(ctx, item, log))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if out == nil {
			return enc.Encode(map[string]any{"results": []any{}, "insights": []any{}})
		}
		return enc.Encode(map[string]any{"results": out.Results, "insights": out.Insights})
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeTitle, "title", "", "idea title")
	probeCmd.Flags().StringVar(&probeText, "text", "", "idea description")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 60*time.Second, "overall deadline")
}
