// Package market discovers tradable temperature bucket markets and parses
// their natural-language questions into structured bucket definitions.
package market

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// ParsedTitle is the structured form of one market question.
type ParsedTitle struct {
	City        string // normalized slug, e.g. "nyc"
	Date        string // YYYY-MM-DD
	Metric      string // "high" or "low"
	BucketLower *float64
	BucketUpper *float64
	BucketLabel string
	Unit        domain.TemperatureUnit
}

// Parser turns market question strings into ParsedTitle values. A question
// that names an unknown city, has no recognizable date, or no temperature
// bucket fails to parse; such markets are skipped, never guessed at.
type Parser struct {
	aliases     []string // known city aliases, longest first
	aliasToSlug map[string]string
	now         func() time.Time
}

// NewParser creates a Parser recognizing the given city aliases. Keys are
// lowercase substrings found in market titles, values are city slugs.
func NewParser(aliases map[string]string) *Parser {
	keys := make([]string, 0, len(aliases))
	for alias := range aliases {
		keys = append(keys, alias)
	}
	// Longest first so "new york city" wins over "new york".
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	return &Parser{
		aliases:     keys,
		aliasToSlug: aliases,
		now:         time.Now,
	}
}

var (
	lowMetricRe = regexp.MustCompile(`(?i)\blow\s+temperature\b`)

	onDateRe        = regexp.MustCompile(`(?i)on\s+((?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2}|\d{1,2}/\d{1,2})`)
	monthDayRe      = regexp.MustCompile(`(?i)((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2})`)
	monthDayPartsRe = regexp.MustCompile(`(?i)^([A-Za-z]+)\s+(\d{1,2})$`)
	slashDateRe     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	isoDateRe       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	// "between 40°F and 44°F", "between 32-33°F", "7–8°C"
	rangeRe = regexp.MustCompile(`(?i)(?:between\s+)?(-?\d+)\s*(?:°\s*([FC]))?\s*(?:and|to|-|–)\s*(-?\d+)\s*°\s*([FC])`)
	// "50°F or higher", "at least 50°F", "above 50°F"
	higherRe = regexp.MustCompile(`(?i)(?:(-?\d+)\s*°\s*([FC])\s*or\s+(?:higher|more|above)|(?:at\s+least|above|over)\s+(-?\d+)\s*°\s*([FC]))`)
	// "35°F or lower", "6°C or below", "under 35°F"
	lowerRe = regexp.MustCompile(`(?i)(?:(-?\d+)\s*°\s*([FC])\s*or\s+(?:lower|less|below)|(?:below|under)\s+(-?\d+)\s*°\s*([FC]))`)
)

// Parse extracts city, date, metric, and temperature bucket from a market
// question. The second return value is false when any component is missing.
func (p *Parser) Parse(title string) (ParsedTitle, bool) {
	lower := strings.ToLower(title)

	city, ok := p.extractCity(lower)
	if !ok {
		return ParsedTitle{}, false
	}

	date, ok := p.extractDate(title)
	if !ok {
		return ParsedTitle{}, false
	}

	metric := "high"
	if lowMetricRe.MatchString(lower) {
		metric = "low"
	}

	parsed, ok := extractBucket(title)
	if !ok {
		return ParsedTitle{}, false
	}

	parsed.City = city
	parsed.Date = date
	parsed.Metric = metric
	return parsed, true
}

func (p *Parser) extractCity(lower string) (string, bool) {
	for _, alias := range p.aliases {
		if strings.Contains(lower, alias) {
			return p.aliasToSlug[alias], true
		}
	}
	return "", false
}

func (p *Parser) extractDate(title string) (string, bool) {
	if m := onDateRe.FindStringSubmatch(title); m != nil {
		return p.parseMarketDate(m[1])
	}
	if m := monthDayRe.FindStringSubmatch(title); m != nil {
		return p.parseMarketDate(m[1])
	}
	return "", false
}

// parseMarketDate resolves "February 25", "2/25", or "2025-02-25" to a
// YYYY-MM-DD string. Year-less dates resolve to the current year unless that
// puts them more than 7 days in the past (markets resolve shortly after
// their date), in which case they roll to next year.
func (p *Parser) parseMarketDate(s string) (string, bool) {
	now := p.now()

	if m := monthDayPartsRe.FindStringSubmatch(s); m != nil {
		month, ok := monthByName(m[1])
		if !ok {
			return "", false
		}
		day, err := strconv.Atoi(m[2])
		if err != nil || day < 1 || day > 31 {
			return "", false
		}
		return p.resolveYear(month, day, now), true
	}

	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		monthNum, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if monthNum < 1 || monthNum > 12 || day < 1 || day > 31 {
			return "", false
		}
		return p.resolveYear(time.Month(monthNum), day, now), true
	}

	if isoDateRe.MatchString(s) {
		return s, true
	}

	return "", false
}

func (p *Parser) resolveYear(month time.Month, day int, now time.Time) string {
	parsed := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if now.Sub(parsed) > 7*24*time.Hour {
		parsed = parsed.AddDate(1, 0, 0)
	}
	return parsed.Format("2006-01-02")
}

func monthByName(name string) (time.Month, bool) {
	if len(name) < 3 {
		return 0, false
	}
	switch strings.ToLower(name[:3]) {
	case "jan":
		return time.January, true
	case "feb":
		return time.February, true
	case "mar":
		return time.March, true
	case "apr":
		return time.April, true
	case "may":
		return time.May, true
	case "jun":
		return time.June, true
	case "jul":
		return time.July, true
	case "aug":
		return time.August, true
	case "sep":
		return time.September, true
	case "oct":
		return time.October, true
	case "nov":
		return time.November, true
	case "dec":
		return time.December, true
	}
	return 0, false
}

func extractBucket(title string) (ParsedTitle, bool) {
	if m := rangeRe.FindStringSubmatch(title); m != nil {
		low, _ := strconv.Atoi(m[1])
		high, _ := strconv.Atoi(m[3])
		unit := unitFromLetter(m[4])
		return ParsedTitle{
			BucketLower: domain.F(float64(low)),
			BucketUpper: domain.F(float64(high)),
			BucketLabel: fmt.Sprintf("%d-%d°%s", low, high, unit),
			Unit:        unit,
		}, true
	}

	if m := higherRe.FindStringSubmatch(title); m != nil {
		val, unit := alternateGroups(m)
		return ParsedTitle{
			BucketLower: domain.F(float64(val)),
			BucketLabel: fmt.Sprintf("%d°%s or higher", val, unit),
			Unit:        unit,
		}, true
	}

	if m := lowerRe.FindStringSubmatch(title); m != nil {
		val, unit := alternateGroups(m)
		return ParsedTitle{
			BucketUpper: domain.F(float64(val)),
			BucketLabel: fmt.Sprintf("%d°%s or lower", val, unit),
			Unit:        unit,
		}, true
	}

	return ParsedTitle{}, false
}

// alternateGroups reads the value/unit pair from whichever alternative of a
// two-branch regex matched.
func alternateGroups(m []string) (int, domain.TemperatureUnit) {
	numStr, unitStr := m[1], m[2]
	if numStr == "" {
		numStr, unitStr = m[3], m[4]
	}
	val, _ := strconv.Atoi(numStr)
	return val, unitFromLetter(unitStr)
}

func unitFromLetter(s string) domain.TemperatureUnit {
	if strings.EqualFold(s, "C") {
		return domain.UnitCelsius
	}
	return domain.UnitFahrenheit
}
