package cmd

import (
	"github.com/carousell/ct-go/pkg/logger/log"
	"github.com/spf13/cobra"

	"github.com/nguyentranbao-ct/storefront/internal/app"
	"github.com/nguyentranbao-ct/storefront/internal/server"
)

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Paginated product listing server",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			server.StartServer,
			app.StartSnapshotConsumer,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.AddCommand(newCatalogCommand())
}
