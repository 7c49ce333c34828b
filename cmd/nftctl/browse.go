package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"nftmarket/internal/catalog"
)

func (a *app) listCmd() *cobra.Command {
	var creator, owner string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List assets, optionally by creator or owner",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			var (
				assets []*catalog.Asset
				err    error
			)
			switch {
			case creator != "":
				assets, err = a.client.GetByCreator(ctx, creator)
			case owner != "":
				assets, err = a.client.GetByOwner(ctx, owner)
			default:
				assets, err = a.client.ListAll(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAssets(assets))
			return nil
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "only assets minted by this identity")
	cmd.Flags().StringVar(&owner, "owner", "", "only assets owned by this identity")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one asset with its ownership history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			asset, err := a.client.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAsset(asset))
			return nil
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Find assets whose title or description contains the query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			assets, err := a.client.Search(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAssets(assets))
			return nil
		},
	}
}

func (a *app) activityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activity [id]",
		Short: "Show the mint and purchase events of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			events, err := a.client.Activity(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderActivity(events))
			return nil
		},
	}
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, a.timeout)
}
