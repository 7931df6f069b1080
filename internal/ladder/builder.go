// Package ladder joins a market catalogue and a market book into the priced
// runner ladder the structure metrics and selection engine consume.
package ladder

import (
	"fmt"
	"sort"

	"github.com/mkirwan/betflow/internal/domain"
)

// Build joins catalogue and book by selection ID into a favourite-first
// runner ladder. Only ACTIVE book runners are included. Book entries with no
// catalogue description get the synthesized name "sel:<id>". Quotes without
// a back price sort after all priced quotes and keep their book order.
// Ranks are assigned 1-based after the sort.
func Build(cat domain.MarketCatalogue, book domain.MarketBook) []domain.RunnerQuote {
	desc := make(map[int64]domain.CatalogueRunner, len(cat.Runners))
	for _, r := range cat.Runners {
		desc[r.SelectionID] = r
	}

	quotes := make([]domain.RunnerQuote, 0, len(book.Runners))
	for _, br := range book.Runners {
		if br.Status != domain.RunnerActive {
			continue
		}
		q := domain.RunnerQuote{SelectionID: br.SelectionID}
		if d, ok := desc[br.SelectionID]; ok {
			q.Name = d.Name
			q.ClothNumber = d.ClothNumber
		} else {
			q.Name = fmt.Sprintf("sel:%d", br.SelectionID)
		}
		if len(br.AvailableToBack) > 0 {
			p := br.AvailableToBack[0].Price
			q.BestBack = &p
		}
		if len(br.AvailableToLay) > 0 {
			p := br.AvailableToLay[0].Price
			q.BestLay = &p
		}
		quotes = append(quotes, q)
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i].BestBack, quotes[j].BestBack
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	for i := range quotes {
		quotes[i].Rank = i + 1
	}
	return quotes
}
