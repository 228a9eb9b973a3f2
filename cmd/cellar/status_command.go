package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and store status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			status, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable (is cellard running?): %w", err)
			}

			caser := cases.Title(language.English)
			state := "stopped"
			if status.Running {
				state = "running"
			}

			rows := [][]string{
				{"State", caser.String(state)},
				{"Store location", status.StoreLocation},
				{"Records", strconv.Itoa(status.Records)},
				{"Active log segment", strconv.FormatInt(status.ActiveSegment, 10)},
				{"Pending log bytes", strconv.FormatInt(status.PendingLogBytes, 10)},
			}
			if status.LastCheckpointAt != "" {
				rows = append(rows, []string{"Last checkpoint", status.LastCheckpointAt})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}
