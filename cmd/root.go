package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-export/config"
	"github.com/dhcgn/mail-export/imap"
	"github.com/dhcgn/mail-export/mbox"
	"github.com/dhcgn/mail-export/runner"
	"github.com/dhcgn/mail-export/search"
)

const appName = "mail-export"

// mailbox is a search.Mailbox that holds a connection or file handle.
type mailbox interface {
	search.Mailbox
	Close() error
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Search an IMAP mailbox and export matching messages as .eml, .html and .pdf",
		Example: `  mail-export --mailhost imap.example.com --username me@example.com --password secret --sender boss@example.com
  mail-export --env work.env --keywords "urgent project" --start-date 2024-01-01 --all-folders
  mail-export --mbox ~/archive.mbox --recipient client@example.com --pdf-backend fpdf`,
		Args: cobra.NoArgs,
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
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runExport(ctx, cfg, logger)
		},
	}

	config.RegisterFlags(rootCmd)
	rootCmd.AddCommand(newFoldersCmd())
	return rootCmd
}

func runExport(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting "+appName,
		"source", source(cfg),
		"sender", cfg.Sender,
		"recipient", cfg.Recipient,
		"keywords", cfg.Keywords,
		"allFolders", cfg.AllFolders,
		"exportDir", cfg.ExportDir)

	mb, err := openMailbox(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			logger.Debug("closing mailbox", "err", err)
		}
	}()

	r, err := runner.New(cfg, mb, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	_, err = r.Run(ctx)
	return err
}

func openMailbox(ctx context.Context, cfg config.Config, logger *slog.Logger) (mailbox, error) {
	if cfg.Offline() {
		mb, err := mbox.Open(mbox.Options{Path: cfg.MboxPath}, logger)
		if err != nil {
			return nil, fmt.Errorf("mbox.Open: %w", err)
		}
		return mb, nil
	}

	logger.Info("connecting", "host", cfg.Host, "port", cfg.Port, "crypt", cfg.Crypt)
	session, err := imap.Dial(ctx, imap.Options{
		Host:               cfg.Host,
		Port:               cfg.Port,
		Username:           cfg.Username,
		Password:           cfg.Password,
		Security:           imap.Security(cfg.Crypt),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func source(cfg config.Config) string {
	if cfg.Offline() {
		return "mbox:" + cfg.MboxPath
	}
	return fmt.Sprintf("imap:%s:%d", cfg.Host, cfg.Port)
}
