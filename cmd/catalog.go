package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/paginator"
	"github.com/nguyentranbao-ct/storefront/internal/viewport"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
)

func newCatalogCommand() *cobra.Command {
	var (
		width   int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Fetch the catalog once and print how it paginates",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load()
			if err != nil {
				return err
			}
			return printCatalog(cmd.Context(), cmd.OutOrStdout(), conf, catalog.NewClient(conf), width, verbose)
		},
	}
	cmd.Flags().IntVar(&width, "width", 1024, "viewport width in CSS pixels")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list product ids per page")
	return cmd
}

func printCatalog(ctx context.Context, w io.Writer, conf *config.Config, client catalog.Client, width int, verbose bool) error {
	products, err := client.GetProducts(ctx)
	if err != nil {
		return err
	}
	policy := viewport.Policy{
		Breakpoint: conf.Listing.Breakpoint,
		WideSize:   conf.Listing.WideSize,
		NarrowSize: conf.Listing.NarrowSize,
	}
	if !policy.Valid() {
		return fmt.Errorf("invalid page size policy %+v", policy)
	}
	size := policy.PageSize(width)
	fmt.Fprintf(w, "products: %d\n", len(products))
	fmt.Fprintf(w, "page size at %dpx: %d\n", width, size)
	fmt.Fprintf(w, "pages: %d\n", paginator.TotalPages(len(products), size))
	if !verbose {
		return nil
	}
	ids := util.Map(products, func(p models.Product) string { return strconv.Itoa(p.ID) })
	page := 0
	for chunk := range slices.Chunk(ids, size) {
		page++
		fmt.Fprintf(w, "  %d: %s\n", page, strings.Join(chunk, ","))
	}
	return nil
}
