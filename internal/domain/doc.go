// Package domain models hurricane track data as GeoJSON features.
//
// # Data Source
//
// Point observations come from best-track archives in the HURDAT2
// lineage (https://www.nhc.noaa.gov/data/). The remote feature-query
// service exposes them as datasets such as "noaa/hurricanes/atlantic",
// one Point feature per six-hourly fix with these properties:
//
//	storm_id         ATCF cyclone identifier, e.g. "AL112017" (Irma)
//	name             storm name at the time of the fix, e.g. "IRMA"
//	timestamp        fix time, RFC 3339 UTC
//	max_wind_kts     maximum sustained wind in knots
//	min_pressure_mb  minimum central pressure in millibars
//
// # Tracks
//
// A storm track is a derived LineString connecting one storm's fixes
// in ascending timestamp order. Track features carry the storm_id,
// the storm name from the earliest fix, and a point_count property.
// A storm with fewer than two fixes in the queried range yields a
// degenerate line with zero or one position; consumers that cannot
// draw those can filter on point_count.
//
// Coordinates are WGS-84 [longitude, latitude] pairs throughout, per
// RFC 7946.
package domain
