// Package polyline implements the signed-delta, printable-ASCII polyline
// encoding used for route geometries, at a fixed precision of 5 decimal
// digits. The encoded form is the compatibility contract with map-rendering
// consumers, so both directions must match the published algorithm exactly.
package polyline

import (
	"fmt"
	"math"
	"strings"
)

// precision scales coordinates to integers before delta encoding.
// Five decimal digits gives roughly 1 metre of resolution.
const precision = 1e5

// Point is a single WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Encode converts an ordered coordinate sequence into its encoded string
// form. Encoding an empty sequence yields the empty string.
func Encode(points []Point) string {
	var sb strings.Builder
	var prevLat, prevLng int64
	for _, p := range points {
		lat := scale(p.Lat)
		lng := scale(p.Lng)
		writeValue(&sb, lat-prevLat)
		writeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

// Decode converts an encoded polyline back into its coordinate sequence.
// It returns an error for truncated value sequences, characters outside the
// encoding alphabet, or a trailing latitude with no longitude.
func Decode(s string) ([]Point, error) {
	var points []Point
	var lat, lng int64
	i := 0
	for i < len(s) {
		dLat, n, err := readValue(s, i)
		if err != nil {
			return nil, err
		}
		i = n

		if i >= len(s) {
			return nil, fmt.Errorf("polyline: truncated at byte %d: latitude with no longitude", i)
		}
		dLng, n, err := readValue(s, i)
		if err != nil {
			return nil, err
		}
		i = n

		lat += dLat
		lng += dLng
		points = append(points, Point{
			Lat: float64(lat) / precision,
			Lng: float64(lng) / precision,
		})
	}
	return points, nil
}

// scale rounds a coordinate to the fixed-precision integer grid.
func scale(v float64) int64 {
	return int64(math.Round(v * precision))
}

// writeValue appends one zigzag-encoded value as base-32 chunks, low bits
// first, each chunk offset by 63 into printable ASCII. A set continuation
// bit (0x20) marks every chunk except the last.
func writeValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte(0x20|(u&0x1f)) + 63)
		u >>= 5
	}
	sb.WriteByte(byte(u) + 63)
}

// readValue decodes one value starting at offset i, returning the value and
// the offset of the next unread byte.
func readValue(s string, i int) (int64, int, error) {
	var u uint64
	var shift uint
	for {
		if i >= len(s) {
			return 0, 0, fmt.Errorf("polyline: truncated at byte %d", i)
		}
		c := s[i]
		if c < 63 || c > 126 {
			return 0, 0, fmt.Errorf("polyline: invalid character %q at byte %d", c, i)
		}
		b := uint64(c - 63)
		u |= (b & 0x1f) << shift
		shift += 5
		i++
		if b < 0x20 {
			break
		}
	}
	v := int64(u >> 1)
	if u&1 != 0 {
		v = ^v
	}
	return v, i, nil
}
