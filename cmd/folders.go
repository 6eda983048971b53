package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-export/config"
	"github.com/dhcgn/mail-export/runner"
)

func newFoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List the mailbox folders with their message counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return listFolders(ctx, cfg, logger)
		},
	}
}

func listFolders(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	mb, err := openMailbox(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = mb.Close()
	}()

	infos, err := runner.Folders(ctx, mb, logger)
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Folder", "Messages"}}
	var total uint64
	for _, info := range infos {
		count := strconv.FormatUint(uint64(info.Messages), 10)
		if info.Err != nil {
			count = "error: " + info.Err.Error()
		}
		total += uint64(info.Messages)
		data = append(data, []string{info.Name, count})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return fmt.Errorf("render folder table: %w", err)
	}
	pterm.Info.Printf("%d folders, %d messages\n", len(infos), total)
	return nil
}
