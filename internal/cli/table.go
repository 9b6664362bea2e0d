package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Table commands",
	}

	cmd.AddCommand(newTableCreateCmd())
	cmd.AddCommand(newTableGetCmd())
	cmd.AddCommand(newTableReloadCmd())

	return cmd
}

func newTableCreateCmd() *cobra.Command {
	var tableType string
	var unrated bool

	cmd := &cobra.Command{
		Use:   "create <room-id>",
		Short: "Create a table and become its host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"type": tableType}
			if cmd.Flags().Changed("unrated") {
				req["rated"] = !unrated
			}
			var result TableDetail

			if err := client.Post("/api/v1/rooms/"+url.PathEscape(args[0])+"/tables", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&tableType, "type", "public", "Table type: public, protected, private")
	cmd.Flags().BoolVar(&unrated, "unrated", false, "Do not rate games at this table")

	return cmd
}

func newTableGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table-id>",
		Short: "Show a table's seats and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result TableDetail

			if err := client.Get("/api/v1/tables/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newTableReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload <table-id>",
		Short: "Re-read a table from storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ReloadResult

			if err := client.Post("/api/v1/tables/"+url.PathEscape(args[0])+"/reload", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
