// Package pagination builds the compact page-number window CLI/API list
// views render: a handful of pages around the active one, plus the first
// and last page, with ".." placeholders bridging any gaps. Pure business
// logic with no external dependency surface.
package pagination

import "math"

// windowRadius is how many pages surround the active page in the window,
// before the first/last-page endpoints are added.
const windowRadius = 4

// Page is either a page number or the ".." gap marker.
type Page struct {
	Number int
	Gap    bool
}

// Result is the computed pagination window.
type Result struct {
	Pages      []Page
	ActivePage int
	TotalPages int
}

// Build computes the pagination window for a result set of total items,
// given the current offset and page limit. offset and limit are 0- and
// 1-indexed respectively in the conventional REST sense: ActivePage =
// offset/limit + 1.
func Build(offset, limit, total int) Result {
	if limit <= 0 {
		limit = 1
	}

	activePage := offset/limit + 1
	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	if totalPages < 1 {
		totalPages = 1
	}

	start := activePage - windowRadius
	if start < 1 {
		start = 1
	}

	end := activePage + windowRadius
	if end > totalPages {
		end = totalPages
	}

	var pages []Page

	if start > 1 {
		pages = append(pages, Page{Number: 1})

		if start > 2 {
			pages = append(pages, Page{Gap: true})
		}
	}

	for p := start; p <= end; p++ {
		pages = append(pages, Page{Number: p})
	}

	if end < totalPages {
		if end < totalPages-1 {
			pages = append(pages, Page{Gap: true})
		}

		pages = append(pages, Page{Number: totalPages})
	}

	return Result{Pages: pages, ActivePage: activePage, TotalPages: totalPages}
}
