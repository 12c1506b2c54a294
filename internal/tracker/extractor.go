package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/skyhub/flightboard/internal/logging"
	"github.com/skyhub/flightboard/internal/upstream"
)

// FetchTimeout bounds the tracking-page fetch.
const FetchTimeout = 10000 * time.Millisecond

// sourceName labels where the extracted timeline came from.
const sourceName = "flightaware"

// bootstrapPattern locates the embedded data assignment in the page source.
// Non-greedy and bounded by a statement terminator or the script-close tag,
// so a malformed page can't make the match run away.
var bootstrapPattern = regexp.MustCompile(`(?s)trackpollBootstrap\s*=\s*(\{.*?\})\s*(?:;|</script>)`)

// Times holds the three variants of one timeline event as ISO-8601 UTC
// strings; absent values are empty strings.
type Times struct {
	Scheduled string `json:"scheduled"`
	Estimated string `json:"estimated"`
	Actual    string `json:"actual"`
}

// Station describes one endpoint of the flight.
type Station struct {
	IATA string `json:"iata"`
	ICAO string `json:"icao,omitempty"`
	Name string `json:"name,omitempty"`
	City string `json:"city,omitempty"`
}

// DepartureTimes groups the departure-side events.
type DepartureTimes struct {
	Gate    Times `json:"gate"`
	Takeoff Times `json:"takeoff"`
}

// ArrivalTimes groups the arrival-side events.
type ArrivalTimes struct {
	Landing Times `json:"landing"`
	Gate    Times `json:"gate"`
}

// Flight is the selected candidate's timeline, normalized for the dashboard.
type Flight struct {
	Flight      string         `json:"flight"`
	Origin      Station        `json:"origin"`
	Destination Station        `json:"destination"`
	Departure   DepartureTimes `json:"departure"`
	Arrival     ArrivalTimes   `json:"arrival"`
	Aircraft    string         `json:"aircraft,omitempty"`
	Status      string         `json:"status,omitempty"`
	Cancelled   bool           `json:"cancelled"`
	Diverted    bool           `json:"diverted"`
	Source      string         `json:"source"`
}

// Wire shapes of the embedded blob. Epochs are pointers so "absent" survives
// decoding.
type bootstrapDoc struct {
	Flights map[string]bootstrapFlight `json:"flights"`
}

type bootstrapFlight struct {
	ActivityLog activityLog `json:"activityLog"`
}

type activityLog struct {
	Flights []pollFlight `json:"flights"`
}

type pollFlight struct {
	Origin               pollStation `json:"origin"`
	Destination          pollStation `json:"destination"`
	GateDepartureTimes   pollTimes   `json:"gateDepartureTimes"`
	TakeoffTimes         pollTimes   `json:"takeoffTimes"`
	LandingTimes         pollTimes   `json:"landingTimes"`
	GateArrivalTimes     pollTimes   `json:"gateArrivalTimes"`
	AircraftTypeFriendly string      `json:"aircraftTypeFriendly"`
	FlightStatus         string      `json:"flightStatus"`
	Cancelled            bool        `json:"cancelled"`
	Diverted             bool        `json:"diverted"`
}

type pollStation struct {
	Iata             string `json:"iata"`
	Icao             string `json:"icao"`
	FriendlyName     string `json:"friendlyName"`
	FriendlyLocation string `json:"friendlyLocation"`
}

type pollTimes struct {
	Scheduled *int64 `json:"scheduled"`
	Estimated *int64 `json:"estimated"`
	Actual    *int64 `json:"actual"`
}

// Client fetches the tracking page and extracts the embedded timeline data.
//
// The page coupling is deliberately contained here: callers only see
// `FlightTimes(designator) -> *Flight`, so the matching strategy can change
// without touching them.
type Client struct {
	httpClient   *nethttp.Client
	baseURL      string
	log          *logging.Logger
	fetchTimeout time.Duration
}

// NewClient creates a tracking-page client.
func NewClient(httpClient *nethttp.Client, baseURL string, log *logging.Logger) *Client {
	return &Client{
		httpClient:   httpClient,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		log:          log,
		fetchTimeout: FetchTimeout,
	}
}

// FlightTimes fetches the tracking page for an already-normalized designator
// and returns the best candidate flight's timeline.
//
// Error classification: non-success status -> upstream.ErrUnavailable,
// deadline -> upstream.ErrTimeout, missing blob or no candidate ->
// upstream.ErrNotFound, undecodable blob -> upstream.ErrBadPayload.
func (c *Client) FlightTimes(ctx context.Context, designator string) (*Flight, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	reqURL := c.baseURL + "/live/flight/" + designator
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building tracking request: %w", err)
	}
	// The page is server-rendered for browsers; a bare Go UA gets a bot wall.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tracking page for %s: %v", upstream.ErrTimeout, designator, err)
		}
		return nil, fmt.Errorf("tracking page for %s: %w", designator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: tracking page returned %d", upstream.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: reading tracking page: %v", upstream.ErrTimeout, err)
		}
		return nil, fmt.Errorf("reading tracking page: %w", err)
	}

	flight, err := extract(body, designator)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("flight", designator).
		Str("status", flight.Status).
		Msg("extracted flight timeline")

	return flight, nil
}

// extract locates the embedded blob, parses it and selects the best
// candidate.
func extract(page []byte, designator string) (*Flight, error) {
	m := bootstrapPattern.FindSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("%w: no embedded flight data in page", upstream.ErrNotFound)
	}

	var doc bootstrapDoc
	if err := json.Unmarshal(m[1], &doc); err != nil {
		return nil, fmt.Errorf("%w: embedded flight data: %v", upstream.ErrBadPayload, err)
	}

	best := selectCandidate(doc)
	if best == nil {
		return nil, fmt.Errorf("%w: no candidate flight in embedded data", upstream.ErrNotFound)
	}

	return normalizeFlight(best, designator), nil
}

// selectCandidate picks the flight with the largest scheduled gate-departure
// epoch across all keys, reading the first (most current) activity-log entry
// per key. A candidate without a scheduled departure never displaces one that
// has it, but is accepted as the initial pick. Keys are visited in sorted
// order so repeated fetches of the same page select the same candidate.
func selectCandidate(doc bootstrapDoc) *pollFlight {
	keys := make([]string, 0, len(doc.Flights))
	for k := range doc.Flights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best *pollFlight
	for _, k := range keys {
		bf := doc.Flights[k]
		if len(bf.ActivityLog.Flights) == 0 {
			continue
		}
		cand := bf.ActivityLog.Flights[0]

		if best == nil {
			best = &cand
			continue
		}
		if cand.GateDepartureTimes.Scheduled == nil {
			continue
		}
		if best.GateDepartureTimes.Scheduled == nil ||
			*cand.GateDepartureTimes.Scheduled > *best.GateDepartureTimes.Scheduled {
			best = &cand
		}
	}
	return best
}

func normalizeFlight(pf *pollFlight, designator string) *Flight {
	return &Flight{
		Flight:      designator,
		Origin:      normalizeStation(pf.Origin),
		Destination: normalizeStation(pf.Destination),
		Departure: DepartureTimes{
			Gate:    normalizeTimes(pf.GateDepartureTimes),
			Takeoff: normalizeTimes(pf.TakeoffTimes),
		},
		Arrival: ArrivalTimes{
			Landing: normalizeTimes(pf.LandingTimes),
			Gate:    normalizeTimes(pf.GateArrivalTimes),
		},
		Aircraft:  pf.AircraftTypeFriendly,
		Status:    pf.FlightStatus,
		Cancelled: pf.Cancelled,
		Diverted:  pf.Diverted,
		Source:    sourceName,
	}
}

func normalizeStation(ps pollStation) Station {
	return Station{
		IATA: ps.Iata,
		ICAO: ps.Icao,
		Name: ps.FriendlyName,
		City: ps.FriendlyLocation,
	}
}

func normalizeTimes(pt pollTimes) Times {
	return Times{
		Scheduled: ISOFromEpoch(pt.Scheduled),
		Estimated: ISOFromEpoch(pt.Estimated),
		Actual:    ISOFromEpoch(pt.Actual),
	}
}
