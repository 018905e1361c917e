// Package domain models French transit nodes enriched with administrative and
// climatological context.
//
// # Data Sources
//
// Nodes are SNCF rail/transit stops exported as JSON pairs:
//
//	[["<key>", {"id": "<sncf id>", "name": "...", "lat": "48.84", "lon": 2.37}], ...]
//
// Coordinates may be JSON strings or numbers. Empty pairs are skipped.
//
// Commune metadata comes from geo.api.gouv.fr (/communes?lat=&lon=), which
// returns the INSEE commune code, department code, region code, population and
// postal codes of the commune containing the point.
//
// Weather stations and monthly climatology come from the Météo-France DPClim
// API. Stations are listed per department; monthly series are obtained in two
// phases: an order (commande) is placed for one station and one date range, then
// the prepared file is polled with the order id until it stops answering 404.
//
// # Department Codes
//
// Department codes are strings, not integers: "01".."95", "2A"/"2B" for
// Corsica, and "971".."976" overseas. They are used verbatim as bucket keys.
//
// # DPClim Monthly CSV
//
// Semicolon-delimited with a header row. Relevant columns:
//
//	DATE       YYYYMM, e.g. "202001"
//	RR         monthly precipitation total (mm)
//	TMM        mean of daily mean temperatures (°C)
//	NBSIGMA80  number of days with insolation fraction ≥ 80% ("sunny days")
//
// Decimals use a comma ("10,5"). An empty cell means the value was not
// measured; it is treated as absent, never as zero. See [AggregateMonthly].
//
// # Matching
//
// A node is matched to the open station of its own department that minimizes
// the haversine distance (Earth radius 6371 km). Departments bound the search
// space, so a linear scan per bucket is sufficient. See [MatchNearest].
package domain
