// Package entsoe downloads and decodes ENTSO-E day-ahead price documents and
// turns them into hour-of-year price series.
package entsoe

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// PublicationMarketDocument is the root of a day-ahead price response (document type A44).
type PublicationMarketDocument struct {
	XMLName            xml.Name     `xml:"Publication_MarketDocument"`
	MRID               string       `xml:"mRID"`
	Type               string       `xml:"type"`
	PeriodTimeInterval TimeInterval `xml:"period.timeInterval"`
	TimeSeries         []TimeSeries `xml:"TimeSeries"`
}

// Domain is a coded bidding-zone identifier.
type Domain struct {
	CodingScheme string `xml:"codingScheme,attr"`
	Value        string `xml:",chardata"`
}

// TimeSeries holds the prices of one bidding zone, usually one per day.
type TimeSeries struct {
	MRID         string   `xml:"mRID"`
	BusinessType string   `xml:"businessType"`
	InDomain     Domain   `xml:"in_Domain.mRID"`
	Currency     string   `xml:"currency_Unit.name"`
	PriceUnit    string   `xml:"price_Measure_Unit.name"`
	CurveType    string   `xml:"curveType"` // A01 fixed blocks, A03 points omitted while the price is unchanged
	Periods      []Period `xml:"Period"`
}

// TimeInterval is a half-open interval [Start, End).
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// UnmarshalXML accepts the minute-precision timestamps ENTSO-E emits.
func (ti *TimeInterval) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Start string `xml:"start"`
		End   string `xml:"end"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	var err error
	if ti.Start, err = parseTimestamp(raw.Start); err != nil {
		return fmt.Errorf("invalid interval start: %w", err)
	}
	if ti.End, err = parseTimestamp(raw.End); err != nil {
		return fmt.Errorf("invalid interval end: %w", err)
	}
	return nil
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02T15:04Z"}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Period is a run of equally spaced price points.
type Period struct {
	TimeInterval TimeInterval
	Resolution   time.Duration
	Points       []Point
}

// Point is the price of the slot at a 1-based position.
type Point struct {
	Position int     `xml:"position"`
	Price    float64 `xml:"price.amount"`
}

// UnmarshalXML decodes the ISO 8601 resolution into a duration.
func (p *Period) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		TimeInterval TimeInterval `xml:"timeInterval"`
		Resolution   string       `xml:"resolution"`
		Points       []Point      `xml:"Point"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	res, err := parseResolution(raw.Resolution)
	if err != nil {
		return err
	}
	p.TimeInterval = raw.TimeInterval
	p.Resolution = res
	p.Points = raw.Points
	return nil
}

// parseResolution handles the durations used for price curves: PTnM, PTnH and PnD.
func parseResolution(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var unit time.Duration
	var num string
	switch {
	case strings.HasPrefix(s, "PT") && len(s) > 3:
		num = s[2 : len(s)-1]
		switch s[len(s)-1] {
		case 'M':
			unit = time.Minute
		case 'H':
			unit = time.Hour
		case 'S':
			unit = time.Second
		}
	case strings.HasPrefix(s, "P") && strings.HasSuffix(s, "D") && len(s) > 2:
		num = s[1 : len(s)-1]
		unit = 24 * time.Hour
	}
	n, err := strconv.Atoi(num)
	if unit == 0 || err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported resolution %q", s)
	}
	return time.Duration(n) * unit, nil
}

// Slots returns the number of resolution steps the period covers.
func (p *Period) Slots() int {
	if p.Resolution <= 0 {
		return 0
	}
	return int(p.TimeInterval.End.Sub(p.TimeInterval.Start) / p.Resolution)
}

// position returns the 1-based slot containing t, or 0 outside the period.
func (p *Period) position(t time.Time) int {
	if p.Resolution <= 0 || t.Before(p.TimeInterval.Start) || !t.Before(p.TimeInterval.End) {
		return 0
	}
	return int(t.Sub(p.TimeInterval.Start)/p.Resolution) + 1
}

// priceAt returns the price of a slot. A missing point repeats the last
// price before it.
func (p *Period) priceAt(pos int) (float64, bool) {
	best := 0
	var price float64
	for _, pt := range p.Points {
		if pt.Position <= pos && pt.Position > best {
			best, price = pt.Position, pt.Price
		}
	}
	return price, best > 0
}

// PriceAt returns the price in force at t.
func (p *Period) PriceAt(t time.Time) (float64, bool) {
	pos := p.position(t)
	if pos == 0 {
		return 0, false
	}
	return p.priceAt(pos)
}

// HourAverage averages the slots starting inside the hour that begins at
// hourStart. Coarser resolutions return the slot containing hourStart.
func (p *Period) HourAverage(hourStart time.Time) (float64, bool) {
	if p.Resolution >= time.Hour {
		return p.PriceAt(hourStart)
	}
	var sum float64
	var n int
	for ts := hourStart; ts.Before(hourStart.Add(time.Hour)); ts = ts.Add(p.Resolution) {
		if price, ok := p.PriceAt(ts); ok {
			sum += price
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// PriceAt searches every period of the document for the price at t.
func (d *PublicationMarketDocument) PriceAt(t time.Time) (float64, bool) {
	for i := range d.TimeSeries {
		for j := range d.TimeSeries[i].Periods {
			if price, ok := d.TimeSeries[i].Periods[j].PriceAt(t); ok {
				return price, true
			}
		}
	}
	return 0, false
}

// HourAverage returns the average price of the hour beginning at hourStart.
func (d *PublicationMarketDocument) HourAverage(hourStart time.Time) (float64, bool) {
	for i := range d.TimeSeries {
		for j := range d.TimeSeries[i].Periods {
			if avg, ok := d.TimeSeries[i].Periods[j].HourAverage(hourStart); ok {
				return avg, true
			}
		}
	}
	return 0, false
}

// Decode parses a price document.
func Decode(r io.Reader) (*PublicationMarketDocument, error) {
	var doc PublicationMarketDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode price document: %w", err)
	}
	return &doc, nil
}

// merge appends the series of other to d and widens the document interval.
func merge(d, other *PublicationMarketDocument) *PublicationMarketDocument {
	if d == nil {
		return other
	}
	if other == nil {
		return d
	}
	out := *d
	out.TimeSeries = append(append([]TimeSeries(nil), d.TimeSeries...), other.TimeSeries...)
	if out.PeriodTimeInterval.Start.IsZero() || other.PeriodTimeInterval.Start.Before(out.PeriodTimeInterval.Start) {
		out.PeriodTimeInterval.Start = other.PeriodTimeInterval.Start
	}
	if other.PeriodTimeInterval.End.After(out.PeriodTimeInterval.End) {
		out.PeriodTimeInterval.End = other.PeriodTimeInterval.End
	}
	return &out
}
