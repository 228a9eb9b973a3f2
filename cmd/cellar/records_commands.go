package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a record by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			record, err := client.GetRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("record %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(record.Value))
			return nil
		},
	}
}

func newPutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Write a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			record, err := client.PutRecord(cmd.Context(), args[0], []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (revision %s)\n", record.Key, record.Revision)
			return nil
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "del <key>",
		Aliases: []string{"delete"},
		Short:   "Delete a record by key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			existed, err := client.DeleteRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("record %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			records, err := client.ListRecords(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "store is empty")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.Key,
					strconv.Itoa(len(record.Value)),
					record.Revision,
					record.UpdatedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Bytes", "Revision", "Updated"}, rows))
			return nil
		},
	}
}
