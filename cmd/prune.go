package cmd

import (
	"fmt"

	"portfolio-gallery/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Reclaim stale metadata versions",
	Long: `Delete every version of the photo metadata document except the newest readable one.

Writes leave the previous version behind when the process stops between writing
the new version and deleting the old one. Run this against a stopped server or
one that is not receiving writes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		repo := repository.NewPhotoRepository(store, cfg.Storage.Timeout)
		removed, err := repo.Prune(ctx)
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}

		log.Info().Int("removed", removed).Msg("Metadata versions reclaimed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
