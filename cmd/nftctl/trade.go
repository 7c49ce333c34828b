package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nftmarket/internal/catalog"
)

func (a *app) mintCmd() *cobra.Command {
	var (
		title, description, image, price string
		extra                            []string
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a new asset owned by the connected account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, err := a.session.Require()
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			asset, err := a.client.Create(ctx, title, description, image, creator, price, extra...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("Minted "+asset.Title))
			fmt.Fprintln(out, renderAsset(asset))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "asset title")
	f.StringVar(&description, "description", "", "asset description")
	f.StringVar(&image, "image", "", "primary image URL")
	f.StringSliceVar(&extra, "extra-image", nil, "additional image URL (repeatable)")
	f.StringVar(&price, "price", "", "listing price in ETH")
	return cmd
}

func (a *app) buyCmd() *cobra.Command {
	var price string

	cmd := &cobra.Command{
		Use:   "buy [id]",
		Short: "Buy an asset as the connected account",
		Long:  "Buy an asset as the connected account. Without --price the current listing price is paid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buyer, err := a.session.Require()
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			if price == "" {
				listed, err := a.client.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				price = listed.Price
			}

			asset, err := a.client.Purchase(ctx, args[0], buyer, price)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Bought %s for %s ETH", asset.Title, price)))
			return nil
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "price to pay in ETH")
	return cmd
}

func (a *app) collectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collection",
		Short: "Show assets owned and created by the connected account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := a.session.Require()
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			owned, err := a.client.GetByOwner(ctx, account)
			if err != nil {
				return err
			}
			created, err := a.client.GetByCreator(ctx, account)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Owned (%d)", len(owned))))
			fmt.Fprintln(out, renderCollection(owned))
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Created (%d)", len(created))))
			fmt.Fprintln(out, renderCollection(created))
			return nil
		},
	}
}

func renderCollection(assets []*catalog.Asset) string {
	if len(assets) == 0 {
		return mutedStyle.Render("  nothing here yet")
	}
	return renderAssets(assets)
}
