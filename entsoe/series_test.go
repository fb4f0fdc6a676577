package entsoe

import (
	"strings"
	"testing"
	"time"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourlySeries(t *testing.T) {
	start, end := calendar.YearBounds(2021, time.UTC)
	doc, err := Decode(strings.NewReader(hourlyXML(start, end, func(i int) float64 { return float64(i % 24) })))
	require.NoError(t, err)

	series, err := HourlySeries(doc, 2021, time.UTC)
	require.NoError(t, err)
	require.Len(t, series, calendar.HoursPerYear)
	for _, h := range []int{0, 13, 4000, calendar.HoursPerYear - 1} {
		assert.Equal(t, float64(h%24), series[h])
	}
}

func TestHourlySeriesSkipsLeapDay(t *testing.T) {
	start, end := calendar.YearBounds(2024, time.UTC)
	doc, err := Decode(strings.NewReader(hourlyXML(start, end, func(i int) float64 { return float64(i / 24) })))
	require.NoError(t, err)

	series, err := HourlySeries(doc, 2024, time.UTC)
	require.NoError(t, err)
	require.Len(t, series, calendar.HoursPerYear)

	feb28 := 58 * 24
	assert.Equal(t, 58.0, series[feb28])
	assert.Equal(t, 60.0, series[feb28+24], "1 March follows 28 February")
	assert.Equal(t, 365.0, series[calendar.HoursPerYear-1])
}

func TestHourlySeriesLocalTime(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	start, end := calendar.YearBounds(2021, cet)
	doc, err := Decode(strings.NewReader(hourlyXML(start, end, func(i int) float64 { return float64(i) })))
	require.NoError(t, err)

	series, err := HourlySeries(doc, 2021, cet)
	require.NoError(t, err)
	assert.Equal(t, 0.0, series[0], "local midnight is 23:00 UTC the day before")
	assert.Equal(t, 100.0, series[100])
}

func TestHourlySeriesMissingHour(t *testing.T) {
	jan := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	doc, err := Decode(strings.NewReader(hourlyXML(jan, jan.AddDate(0, 1, 0), func(int) float64 { return 1 })))
	require.NoError(t, err)

	_, err = HourlySeries(doc, 2021, time.UTC)
	assert.ErrorIs(t, err, ErrMissingHour)

	_, err = HourlySeries(nil, 2021, time.UTC)
	assert.ErrorIs(t, err, ErrMissingHour)
}
