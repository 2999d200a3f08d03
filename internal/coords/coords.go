// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coords parses the free-text latitude, longitude and altitude that
// users type for an observation.
package coords

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalid reports a coordinate that cannot be read or is out of range.
var ErrInvalid = errors.New("invalid coordinate")

const feetToMeters = 0.3048

// Latitude parses decimal ("-12.345") or degree-minute-second
// ("12 34 56 N", "12°34'56\"N") text into decimal degrees rounded to four
// places. Empty text returns nil.
func Latitude(text string) (*float64, error) {
	return parse(text, 90, "NS")
}

// Longitude is Latitude for the east-west axis.
func Longitude(text string) (*float64, error) {
	return parse(text, 180, "EW")
}

// Altitude parses "345 ft", "345'", "105 m" or "105" into whole meters.
// Empty text returns nil.
func Altitude(text string) (*int, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, nil
	}

	factor := 1.0
	switch {
	case strings.HasSuffix(text, "ft"):
		factor = feetToMeters
		text = strings.TrimSuffix(text, "ft")
	case strings.HasSuffix(text, "'"):
		factor = feetToMeters
		text = strings.TrimSuffix(text, "'")
	case strings.HasSuffix(text, "m"):
		text = strings.TrimSuffix(text, "m")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: altitude %q", ErrInvalid, text)
	}
	m := int(math.Round(v * factor))
	return &m, nil
}

func parse(text string, limit float64, directions string) (*float64, error) {
	orig := text
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return nil, nil
	}
	text = strings.NewReplacer("°", " ", "'", " ", "\"", " ", "′", " ", "″", " ").Replace(text)

	sign := 1.0
	if last := text[len(text)-1]; last >= 'A' && last <= 'Z' {
		if !strings.ContainsRune(directions, rune(last)) {
			return nil, fmt.Errorf("%w: %q has direction %c, want one of %s", ErrInvalid, orig, last, directions)
		}
		if last == 'S' || last == 'W' {
			sign = -1
		}
		text = text[:len(text)-1]
	}

	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 3 {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, orig)
	}

	var parts [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalid, orig)
		}
		if i > 0 && (v < 0 || v >= 60) {
			return nil, fmt.Errorf("%w: %q has minutes or seconds out of range", ErrInvalid, orig)
		}
		parts[i] = v
	}

	if parts[0] < 0 {
		sign = -sign
		parts[0] = -parts[0]
	}
	v := sign * (parts[0] + parts[1]/60 + parts[2]/3600)
	if math.Abs(v) > limit {
		return nil, fmt.Errorf("%w: %q is beyond %v degrees", ErrInvalid, orig, limit)
	}
	v = math.Round(v*10000) / 10000
	return &v, nil
}
