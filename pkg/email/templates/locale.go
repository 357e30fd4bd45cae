package templates

import (
	"time"

	"golang.org/x/text/language"
)

type dateOrder int

const (
	orderDMY dateOrder = iota
	orderMDY
	orderYMD
)

var ymdLanguages = map[string]struct{}{
	"ja": {}, "zh": {}, "ko": {}, "hu": {}, "lt": {}, "mn": {},
}

var mdyRegions = map[string]struct{}{
	"US": {}, "PH": {}, "FM": {}, "PW": {}, "MH": {},
}

// orderFor picks the conventional date order of a BCP 47 tag. Unparseable
// tags fall back to English, whose inferred region is US.
func orderFor(locale string) dateOrder {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.English
	}
	base, _ := tag.Base()
	if _, ok := ymdLanguages[base.String()]; ok {
		return orderYMD
	}
	region, _ := tag.Region()
	if _, ok := mdyRegions[region.String()]; ok {
		return orderMDY
	}
	return orderDMY
}

var dateInputLayouts = []struct {
	layout  string
	hasTime bool
}{
	{time.RFC3339, true},
	{"2006-01-02T15:04", true},
	{"2006-01-02 15:04", true},
	{"2006-01-02", false},
}

// FormatDate renders an ISO date or timestamp in the order used by locale.
// Values that are not ISO dates are returned unchanged.
func FormatDate(value, locale string) string {
	for _, in := range dateInputLayouts {
		t, err := time.Parse(in.layout, value)
		if err != nil {
			continue
		}
		var layout string
		switch orderFor(locale) {
		case orderMDY:
			layout = "01/02/2006"
		case orderYMD:
			layout = "2006-01-02"
		default:
			layout = "02/01/2006"
		}
		if in.hasTime {
			layout += " 15:04"
		}
		return t.Format(layout)
	}
	return value
}
