package commands

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"go.llib.dev/sharedrt/internal/demo/support"
)

func supportCmd(a *app) *cobra.Command {
	var (
		deskPath string
		category string
		summary  string
	)
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Route a ticket through the support desk",
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, err := loadDesk(deskPath)
			if err != nil {
				return err
			}
			ticket := support.Ticket{
				ID:       uuid.NewString(),
				Category: support.Category(category),
				Summary:  summary,
			}
			c := desk.Chain(a.logger)
			c.Metrics = a.metrics
			c.Tracer = a.tracer
			reply, err := support.Submit(cmd.Context(), c, ticket)
			if err != nil {
				return err
			}
			tier := reply.Tier
			if tier == "" {
				tier = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", ticket.Category, tier, reply.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&deskPath, "desk", "", "TOML desk description (default: the built-in three tier desk)")
	cmd.Flags().StringVar(&category, "category", string(support.General), "ticket category: GENERAL, TECHNICAL or ESCALATION")
	cmd.Flags().StringVar(&summary, "summary", "", "ticket summary")
	return cmd
}

func loadDesk(path string) (*support.Desk, error) {
	if path == "" {
		return support.DefaultDesk()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return support.LoadDesk(f)
}
