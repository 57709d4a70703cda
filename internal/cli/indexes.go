package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigmarket/identity/internal/infrastructure/db/mongo"
	"github.com/gigmarket/identity/pkg/logger"
)

// indexesCmd creates the MongoDB indexes and exits.
var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create MongoDB indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}

		client, db, err := mongo.Connect(cmd.Context(), mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		if err := mongo.EnsureIndexes(cmd.Context(), db); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		log := logger.Get()
		log.Info().Str("database", cfg.Mongo.Database).Msg("indexes ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}
