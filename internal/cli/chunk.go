package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewChunkCmd создаёт группу команд chunk.
func NewChunkCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Inspect and submit replica chunks",
	}

	cmd.AddCommand(
		newChunkListCmd(clientFn, outputFn),
		newChunkShowCmd(clientFn, outputFn),
		newChunkStageCmd(clientFn, outputFn),
	)

	return cmd
}

func newChunkListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListChunksOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			chunks, err := clientFn().ListChunks(opts)
			if err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"CHUNK", "STATUS", "STAGED", "PROMOTED", "DIRECTORY"}
			rows := make([][]string, len(chunks))
			for i, c := range chunks {
				rows[i] = []string{
					strconv.FormatInt(c.ID, 10),
					c.Status,
					orDash(c.StagedAt),
					orDash(c.PromotedAt),
					orDash(c.Directory),
				}
			}
			out.Print(headers, rows, chunks)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (exported, staged, promoted, failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of chunks")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Offset for pagination")

	return cmd
}

func newChunkShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <chunk-id>",
		Short: "Show a chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chunk, err := clientFn().GetChunk(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"Chunk", strconv.FormatInt(chunk.ID, 10)},
				{"Status", chunk.Status},
				{"Directory", orDash(chunk.Directory)},
				{"Unique ID", orDash(chunk.UniqueID)},
				{"Last update", orDash(chunk.LastUpdateTime)},
				{"Exported", orDash(chunk.ExportedAt)},
				{"Staged", orDash(chunk.StagedAt)},
				{"Promoted", orDash(chunk.PromotedAt)},
				{"Created", chunk.CreatedAt},
				{"Updated", chunk.UpdatedAt},
			}
			out.Print(headers, rows, chunk)
			return nil
		},
	}
}

// stageRequest — сообщение stage-chunk-topic.
type stageRequest struct {
	Bucket    string `json:"bucket"`
	Name      string `json:"name"`
	DatasetID string `json:"dataset"`
}

// newChunkStageCmd отправляет запрос на staging в push-эндпоинт /stage_chunk.
// Используется для локального прогона и повторной отправки.
func newChunkStageCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req stageRequest

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Submit a chunk folder for staging",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Bucket == "" || req.Name == "" || req.DatasetID == "" {
				return fmt.Errorf("--bucket, --name and --dataset are required")
			}
			if _, err := clientFn().Push("/stage_chunk", req); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Submitted gs://%s/%s for staging", req.Bucket, req.Name))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Bucket, "bucket", "", "Bucket holding the chunk folder")
	cmd.Flags().StringVar(&req.Name, "name", "", "Chunk folder path inside the bucket")
	cmd.Flags().StringVar(&req.DatasetID, "dataset", "", "Target dataset ([project:]dataset)")

	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
