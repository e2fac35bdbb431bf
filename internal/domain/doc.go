// Package domain models tornado catalog events and their derived physical
// quantities.
//
// # Data Source
//
// Events originate from the NOAA Storm Prediction Center (SPC) tornado
// database (one record per tornado touchdown, 1950-present). The upstream
// ingestion service parses the SPC shapefile/CSV, projects coordinates to
// planar meters, and publishes one flat JSON record per event to the Kafka
// source topic. This package never sees the raw catalog format.
//
// # Catalog Conventions
//
// Coordinates:
//
//	Projected planar meters (x_m, y_m), not latitude/longitude. A
//	distance-preserving projection (the ingester uses a US-centered Lambert
//	azimuthal equal-area) is required so Euclidean distance between two
//	events is a physical ground distance.
//
// Timestamps:
//
//	RFC 3339, already normalized by the ingester to one explicit zone (the
//	SPC catalog convention is fixed UTC-6). ConvectiveDay never consults
//	the system time zone.
//
// Intensity ("ef" field):
//
//	Enhanced Fujita rating 0-5. The SPC sentinel -9 marks an unrated
//	tornado; it is resolved at parse time from path length (long tracks
//	become EF1, short tracks EF0), matching how unrated events are folded
//	into the historical record before modeling.
//
// Path dimensions:
//
//	Meters. Zero or missing length/width is floored to 1 m: a zero path
//	area would force zero dissipated energy and degrade area weighting
//	downstream. The "width_convention" field records whether the catalog
//	vintage reported average or maximum path width; maximum widths are
//	scaled by pi/4 to approximate the mean width of an elliptical path.
//
// # Convective Day
//
// Outbreak accounting uses a 24-hour period starting at 06:00 rather than
// midnight, so overnight tornadoes are attributed to the storm system of the
// previous afternoon. See [ConvectiveDay].
//
// # Energy Dissipation
//
// [EnergyDissipation] estimates the kinetic energy released over a tornado's
// damage path from its EF rating and path area, using the per-rating wind
// speed distribution from the Nuclear Regulatory Commission rapid assessment
// tables. See energy.go for the constants and their derivation.
package domain
