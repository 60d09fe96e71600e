package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
)

// NewCollectionsCmd constructs the `glih collections` command group for
// inspecting and administering vector store collections.
func NewCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List and manage vector store collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, _, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}
			defer func() { _ = store.Close() }()

			names, err := store.ListCollections(ctx)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}
			if len(names) == 0 {
				fmt.Println("no collections")
				return nil
			}
			def := defaultCollection()
			for _, name := range names {
				if name == def {
					fmt.Printf("%s (default)\n", name)
				} else {
					fmt.Println(name)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(
		newCollectionsStatsCmd(),
		newCollectionsDeleteCmd(),
		newCollectionsResetCmd(),
	)

	return cmd
}

func newCollectionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [name]",
		Short: "Show size and configuration of one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, _, err := buildStore(ctx, logging.New())
			if err != nil {
				return fmt.Errorf("collections stats: %w", err)
			}
			defer func() { _ = store.Close() }()

			stats, err := store.CollectionStats(ctx, args[0])
			if err != nil {
				return fmt.Errorf("collections stats: %w", err)
			}
			fmt.Printf("name:      %s\n", stats.Name)
			fmt.Printf("count:     %d\n", stats.Count)
			fmt.Printf("provider:  %s\n", stats.Provider)
			if stats.Dimension > 0 {
				fmt.Printf("dimension: %d\n", stats.Dimension)
			}
			if stats.IndexType != "" {
				fmt.Printf("index:     %s\n", stats.IndexType)
			}
			return nil
		},
	}
}

func newCollectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a collection and all its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			if name == defaultCollection() {
				return fmt.Errorf("collections delete: %q is the default collection and cannot be deleted", name)
			}

			store, _, err := buildStore(ctx, logging.New())
			if err != nil {
				return fmt.Errorf("collections delete: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteCollection(ctx, name); err != nil {
				return fmt.Errorf("collections delete: %w", err)
			}
			fmt.Printf("deleted %s\n", name)
			return nil
		},
	}
}

func newCollectionsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [name]",
		Short: "Drop and recreate a collection, emptying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			name := args[0]

			store, _, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("collections reset: %w", err)
			}
			defer func() { _ = store.Close() }()

			// Best-effort delete; creation decides success.
			if err := store.DeleteCollection(ctx, name); err != nil {
				log.Warn("reset: delete failed, attempting create anyway",
					slog.String("collection", name), slog.Any("error", err))
			}
			if err := store.CreateCollection(ctx, name); err != nil {
				return fmt.Errorf("collections reset: %w", err)
			}
			fmt.Printf("reset %s\n", name)
			return nil
		},
	}
}
