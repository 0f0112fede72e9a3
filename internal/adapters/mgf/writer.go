package mgf

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/corey/pepvalid/internal/ports"
)

// WriteSpectrum writes one spectrum as a BEGIN IONS block. Extra tags, the
// SEQ annotation of training exports for instance, follow the standard
// headers in sorted key order.
func WriteSpectrum(w io.Writer, s *ports.Spectrum, tags map[string]string) error {
	var b strings.Builder
	b.WriteString("BEGIN IONS\n")
	b.WriteString("TITLE=" + s.Title + "\n")
	if s.Precursor.Mz != 0 {
		b.WriteString("PEPMASS=" + formatFloat(s.Precursor.Mz) + "\n")
	}
	if len(s.Precursor.Charges) > 0 {
		b.WriteString("CHARGE=" + formatCharges(s.Precursor.Charges) + "\n")
	}
	for _, key := range sortedTagKeys(tags) {
		b.WriteString(key + "=" + tags[key] + "\n")
	}
	for _, peak := range s.Peaks {
		b.WriteString(formatFloat(peak.Mz) + " " + formatFloat(peak.Intensity) + "\n")
	}
	b.WriteString("END IONS\n\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write mgf block %s: %w", s.Title, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatCharges(charges []int) string {
	parts := make([]string, len(charges))
	for i, c := range charges {
		if c < 0 {
			parts[i] = strconv.Itoa(-c) + "-"
		} else {
			parts[i] = strconv.Itoa(c) + "+"
		}
	}
	return strings.Join(parts, " and ")
}

func sortedTagKeys(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
