// Package extremes finds extreme temperature waves in the combined series
// produced by the combine stage.
//
// A day is extreme cold when a unit's mean tmax falls below a low percentile
// of its year's tmax distribution, and extreme hot when its mean tmin rises
// above a high percentile of tmin. Consecutive extreme days of one unit form
// a wave; a lone extreme day is a wave of length 1. Output rows carry the
// wave id, the day's 1-based index in its wave, and the wave length:
//
//	id,year,month,day,extreme,wave_id,wave_index,wave_length
//
// Cutoffs come from per-(year, id) quantile tables under
// root/extra/<geography>/; outputs land next to them as
// extreme_temps_pctileLL_pctileHH.csv.gz, published through the same
// temp-then-rename protocol as the combine stage, so re-running only
// produces what is missing. A day whose (year, id) has no cutoff entry is
// never extreme.
package extremes
