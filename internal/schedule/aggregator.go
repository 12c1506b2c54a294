package schedule

import (
	"context"
)

const (
	// CarrierCode is the marketing code the aggregation keeps. The dashboard
	// only shows United traffic.
	CarrierCode = "UA"

	// daySeconds is the length of one schedule day window.
	daySeconds = 86400
)

// Aggregation is the stitched, filtered result of a multi-page scan.
type Aggregation struct {
	Records      []Record
	TotalFetched int
	PagesScanned int
	TotalPages   int
}

// Aggregate scans sequential upstream pages for (hub, dir) starting at
// dayStart and stitches the carrier-filtered records into one result.
//
// Termination, in order of precedence per page:
//   - a record whose relevant timestamp falls at or past dayStart+86400 marks
//     the day boundary; the current page is finished, no further page is
//     fetched, and the boundary record itself is excluded,
//   - an empty data page stops the scan even if more pages were advertised,
//   - the scan never goes past min(totalPages, MaxPages).
//
// The relevant timestamp is the scheduled departure for "departures" and the
// scheduled arrival otherwise. A record without it is kept and ignored for
// boundary detection. Any page error aborts the whole aggregation; partial
// results are discarded.
func (c *Client) Aggregate(ctx context.Context, hub, dir string, dayStart int64) (*Aggregation, error) {
	dayEnd := dayStart + daySeconds

	agg := &Aggregation{Records: []Record{}}
	totalPages := 1

	for page := 1; ; page++ {
		p, err := c.FetchPage(ctx, hub, dir, dayStart, page)
		if err != nil {
			return nil, err
		}

		if page == 1 {
			totalPages = p.TotalPages
			if totalPages <= 0 {
				totalPages = 1
			}
			agg.TotalPages = totalPages
		}

		agg.PagesScanned++
		agg.TotalFetched += len(p.Data)

		crossedBoundary := false
		for _, rec := range p.Data {
			if rec.AirlineCode != CarrierCode {
				continue
			}
			ts := relevantTimestamp(rec, dir)
			if ts != nil && *ts >= dayEnd {
				crossedBoundary = true
				continue
			}
			agg.Records = append(agg.Records, rec)
		}

		if crossedBoundary {
			c.log.Debug().
				Str("hub", hub).
				Int("page", page).
				Msg("day boundary crossed, stopping aggregation")
			break
		}
		if len(p.Data) == 0 {
			break
		}
		maxPages := totalPages
		if maxPages > MaxPages {
			maxPages = MaxPages
		}
		if page >= maxPages {
			break
		}
	}

	return agg, nil
}

// relevantTimestamp picks the field the day-boundary check uses for the given
// direction.
func relevantTimestamp(rec Record, dir string) *int64 {
	if dir == "departures" {
		return rec.ScheduledDeparture
	}
	return rec.ScheduledArrival
}
