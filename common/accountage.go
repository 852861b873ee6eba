package common

import "time"

// Telegram does not expose account creation time, but user ids are allocated
// roughly monotonically. The anchor table maps known id ranges to dates so we
// can interpolate an estimate for the age gate.
var idDateAnchors = []struct {
	id int64
	at time.Time
}{
	{1, time.Date(2013, 8, 14, 0, 0, 0, 0, time.UTC)},
	{1_000_000_000, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)},
	{2_000_000_000, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)},
	{3_000_000_000, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	{4_000_000_000, time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)},
	{5_000_000_000, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)},
	{6_000_000_000, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	{7_000_000_000, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
}

// EstimateCreatedAt interpolates an account creation time from a Telegram
// user id. Ids beyond the last anchor clamp to the last anchor date.
func EstimateCreatedAt(userID int64) time.Time {
	if userID <= idDateAnchors[0].id {
		return idDateAnchors[0].at
	}
	for i := 0; i < len(idDateAnchors)-1; i++ {
		left, right := idDateAnchors[i], idDateAnchors[i+1]
		if userID <= right.id {
			ratio := float64(userID-left.id) / float64(right.id-left.id)
			leftTs := left.at.Unix()
			rightTs := right.at.Unix()
			ts := leftTs + int64(ratio*float64(rightTs-leftTs))
			return time.Unix(ts, 0).UTC()
		}
	}
	return idDateAnchors[len(idDateAnchors)-1].at
}

// EstimateAccountAgeDays returns the estimated account age in whole days,
// never negative.
func EstimateAccountAgeDays(userID int64, now time.Time) int {
	created := EstimateCreatedAt(userID)
	days := int(now.Sub(created).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
