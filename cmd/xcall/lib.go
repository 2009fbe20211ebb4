package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Comcast/xcall/storage"
	"github.com/Comcast/xcall/storage/bolt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var libStore string

var libCmd = &cobra.Command{
	Use:   "lib",
	Short: "Maintain the library store",
	Long: `Libraries in the store can be required as "store://NAME" by scripts and
by the serve command's --preload.`,
}

var libPutCmd = &cobra.Command{
	Use:   "put NAME FILE",
	Short: "Store the contents of FILE as library NAME",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s storage.Store, args []string) error {
		src, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		logger.Info("put", zap.String("library", args[0]), zap.Int("bytes", len(src)))
		return s.Put(ctx, &storage.Library{
			Name:    args[0],
			Source:  string(src),
			Updated: time.Now().UTC(),
		})
	}),
}

var libGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Write library NAME to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s storage.Store, args []string) error {
		lib, err := s.Get(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), lib.Source)
		return err
	}),
}

var libLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the stored libraries",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s storage.Store, args []string) error {
		names, err := s.List(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}),
}

var libRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove library NAME",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s storage.Store, args []string) error {
		return s.Rem(ctx, args[0])
	}),
}

func init() {
	libCmd.PersistentFlags().StringVar(&libStore, "store", "xcall.db", "BoltDB library store")

	libCmd.AddCommand(libPutCmd)
	libCmd.AddCommand(libGetCmd)
	libCmd.AddCommand(libLsCmd)
	libCmd.AddCommand(libRmCmd)
}

// withStore opens the bolt store around f.
func withStore(f func(context.Context, *cobra.Command, storage.Store, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := bolt.NewStore(libStore)
		if err != nil {
			return err
		}
		if err = s.Open(ctx); err != nil {
			return err
		}
		defer s.Close(ctx)
		return f(ctx, cmd, s, args)
	}
}
