package main

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nftmarket/internal/catalog"
	"nftmarket/internal/clients"
	"nftmarket/internal/wallet"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	server  string
	account string
	timeout time.Duration
	verbose bool

	client  catalog.Service
	session *wallet.Session
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nftctl",
		Short: "Browse, mint and buy assets on the NFT marketplace",
		Long: `nftctl talks to the catalog service.

Examples:
  nftctl list
  nftctl search cosmic
  nftctl --account 0xAAA mint --title "Neon Cityscape" --description "A futuristic city" \
      --image https://example.com/neon.png --price 1.2
  nftctl --account 0xBBB buy 0x3f1c...
  nftctl --account 0xBBB collection`,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.server, "server", envOr("NFT_SERVER", "http://localhost:8081"), "catalog service URL")
	flags.StringVar(&a.account, "account", os.Getenv("NFT_ACCOUNT"), "wallet account to act as")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log wallet and client activity")

	root.AddCommand(
		a.listCmd(),
		a.showCmd(),
		a.searchCmd(),
		a.activityCmd(),
		a.mintCmd(),
		a.buyCmd(),
		a.collectionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetOutput(io.Discard)
	if a.verbose {
		log.SetOutput(cmd.ErrOrStderr())
		log.SetLevel(logrus.DebugLevel)
	}

	a.client = clients.NewCatalogClient(a.server)

	var provider wallet.Provider
	if a.account != "" {
		provider = wallet.StaticProvider{Accounts: []string{a.account}}
	}
	a.session = wallet.NewSession(provider, log)
	if provider != nil {
		if _, err := a.session.Connect(cmd.Context()); err != nil {
			return err
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
