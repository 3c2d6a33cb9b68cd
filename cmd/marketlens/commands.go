package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"MarketLens/internal/market"
	"MarketLens/internal/report"
	"MarketLens/internal/valuation"
)

func newMarketsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "markets [query]",
		Short: "List quote markets, optionally filtered by name or symbol",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.RequestTimeout)
			defer cancel()

			catalog := market.NewCatalog(newFetcher(cfg), cfg.QuoteCurrency, market.DefaultTTL)
			all, err := catalog.List(ctx)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Market", "Korean", "English"})
			for _, m := range market.Filter(all, query) {
				table.Append([]string{m.Symbol, m.KoreanName, m.EnglishName})
			}
			table.Render()
			return nil
		},
	}
}

func newPortfolioCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Fetch the account snapshot once and print its valuation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.RequestTimeout)
			defer cancel()

			holdings, err := newFetcher(cfg).FetchHoldings(ctx)
			if err != nil {
				return err
			}
			v := valuation.Compute(cfg.QuoteCurrency, holdings, nil)
			fmt.Print(report.FormatValuation(cfg.QuoteCurrency, v))
			return nil
		},
	}
}
