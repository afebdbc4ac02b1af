package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPromoteCmd создаёт команду promote.
func NewPromoteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote staged chunks to production tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().Promote(dryRun)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(resp)
				return nil
			}

			if resp.Message != "" {
				out.Success(resp.Message)
			}
			if len(resp.ChunkIDs) == 0 {
				return nil
			}

			headers := []string{"CHUNK"}
			rows := make([][]string, len(resp.ChunkIDs))
			for i, id := range resp.ChunkIDs {
				rows[i] = []string{strconv.FormatInt(id, 10)}
			}
			out.Table(headers, rows)
			out.Success(fmt.Sprintf("Mode: %s, promoted: %d", resp.Mode, resp.ChunksPromoted))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List promotable chunks without promoting")
	return cmd
}
