package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	integrationapp "github.com/storefront/landedcost/internal/application/integration"
	"github.com/storefront/landedcost/internal/domain/integration"
	"github.com/storefront/landedcost/internal/domain/pricing"
)

// productQuote is one dry-run line
type productQuote struct {
	ExternalID string                  `json:"external_id"`
	Name       string                  `json:"name"`
	Price      *decimal.Decimal        `json:"price,omitempty"`
	Quote      *pricing.Result         `json:"quote,omitempty"`
	Packaging  *pricing.Recommendation `json:"packaging,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

func quoteAll(svc *integrationapp.ReconciliationService, products []integration.SupplierProduct, override *pricing.PolicyOverride) []productQuote {
	policy := svc.Policy().Merge(override)
	envelopes := pricing.DefaultEnvelopes()

	out := make([]productQuote, 0, len(products))
	for i := range products {
		sp := products[i]
		err := sp.Validate()
		line := productQuote{ExternalID: sp.ExternalID, Name: sp.Name}
		if err != nil {
			line.Error = err.Error()
			out = append(out, line)
			continue
		}

		quote, err := svc.QuoteProduct(&sp, override)
		if err != nil {
			line.Error = err.Error()
			out = append(out, line)
			continue
		}
		if price, ok := quote.Price(); ok {
			rep := quote.Variants[quote.Representative]
			line.Price = &price
			line.Quote = &rep

			v := sp.Variants[quote.Representative]
			if rec, err := pricing.RecommendPackaging(v.WeightKg, v.Dimensions(), envelopes, policy.VolumetricDivisor); err == nil {
				line.Packaging = &rec
			}
		}
		out = append(out, line)
	}
	return out
}

func printQuotes(w io.Writer, format string, quotes []productQuote) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(quotes)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTERNAL ID\tLANDED\tPRICE\tBILLED KG\tPACKAGING\tANOMALIES")
	for _, q := range quotes {
		if q.Error != "" {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\terror: %s\n", q.ExternalID, q.Error)
			continue
		}
		if q.Quote == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\tno variants\n", q.ExternalID)
			continue
		}
		packaging := "-"
		if q.Packaging != nil {
			packaging = q.Packaging.Envelope.Code
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			q.ExternalID,
			q.Quote.LandedCost.StringFixed(2),
			q.Price.StringFixed(2),
			q.Quote.Weight.Billed.String(),
			packaging,
			anomalyCodes(q.Quote.Anomalies),
		)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, format string, result *integrationapp.BatchImportResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "Run %s: %d products, %d created, %d updated, %d failed, %d skipped, %d anomalies in %s\n",
		result.RunID, result.Total, result.Created, result.Updated,
		result.Failed, result.Skipped, result.Anomalies, result.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTERNAL ID\tSTATUS\tPRICE\tUPDATED\tDETAIL")
	for _, r := range result.Results {
		status := "updated"
		switch {
		case !r.Success:
			status = "failed"
		case r.Created:
			status = "created"
		}
		price := "-"
		if r.Price != nil {
			price = r.Price.StringFixed(2)
		}
		detail := anomalyCodes(r.Anomalies)
		if r.ErrorCode != "" {
			detail = r.ErrorCode + ": " + r.Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ExternalID, status, price, aspects(r.Updated), detail)
	}
	return tw.Flush()
}

func anomalyCodes(anomalies []pricing.Anomaly) string {
	if len(anomalies) == 0 {
		return "-"
	}
	codes := make([]string, len(anomalies))
	for i, a := range anomalies {
		codes[i] = a.Code
	}
	return strings.Join(codes, ",")
}

func aspects(updated []integrationapp.Aspect) string {
	if len(updated) == 0 {
		return "-"
	}
	names := make([]string, len(updated))
	for i, a := range updated {
		names[i] = string(a)
	}
	return strings.Join(names, ",")
}
