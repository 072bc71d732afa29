package cmds

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func formatMoney(currency string, v float64) string {
	return currency + " " + strconv.FormatFloat(v, 'f', 2, 64)
}

func newPriceCmd() *cobra.Command {
	var q gateway.PriceSuggestionQuery
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Ask the backend for a price suggestion for a niche",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(q.Niche) == "" {
				return errors.New("--niche is required")
			}
			if q.TargetPrice <= 0 {
				return errors.New("--target-price must be > 0")
			}
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			s, err := c.PriceSuggestion(requestContext(cmd), q)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			keys := make([]string, 0, len(s.PriceRange))
			for k := range s.PriceRange {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var ranges []string
			for _, k := range keys {
				ranges = append(ranges, k+" "+formatMoney(s.Currency, s.PriceRange[k]))
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(
				kv("suggested", formatMoney(s.Currency, s.SuggestedPrice)),
				kv("range", orDash(strings.Join(ranges, ", "))),
				kv("multiplier", strconv.FormatFloat(s.MarketAnalysis.Multiplier, 'f', -1, 64)),
				kv("confidence", orDash(s.MarketAnalysis.Confidence)),
				kv("trend", orDash(s.MarketAnalysis.MarketTrend)),
			))
			for _, r := range s.Recommendations {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  - "+r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Niche, "niche", "", "Market niche")
	cmd.Flags().Float64Var(&q.TargetPrice, "target-price", 0, "Price you have in mind")
	cmd.Flags().StringVar(&q.Currency, "currency", "BRL", "Currency code")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newMetricsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show project completion metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			m, err := c.Metrics(requestContext(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), m)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(
				kv("projects", strconv.Itoa(m.TotalProjects)),
				kv("completed", strconv.Itoa(m.CompletedProjects)),
				kv("completion rate", strconv.FormatFloat(m.CompletionRate, 'f', 1, 64)+"%"),
				kv("avg completion", strconv.FormatFloat(m.AvgCompletionTime, 'f', 1, 64)+" min"),
				kv("avg first asset", strconv.FormatFloat(m.AvgTimeToFirstAsset, 'f', 1, 64)+" min"),
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
