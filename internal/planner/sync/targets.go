package sync

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rsned/tower-planner/pkg/planner"
)

// ParseTargets reads the tier list CSV. The header must name a Name column;
// Tier and Output are optional. A missing or invalid Output means one per
// minute. Row order gives the 1-based target index; rows without a name are
// skipped.
func ParseTargets(r io.Reader) ([]planner.Target, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	tierCol, nameCol, outCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))) {
		case "tier":
			tierCol = i
		case "name":
			nameCol = i
		case "output":
			outCol = i
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: targets csv has no Name column", planner.ErrInvalidRequest)
	}

	field := func(rec []string, col int) string {
		if col < 0 || col >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[col])
	}

	var targets []planner.Target
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading targets: %w", err)
		}

		name := field(rec, nameCol)
		if name == "" {
			continue
		}
		rate, err := strconv.ParseFloat(field(rec, outCol), 64)
		if err != nil || rate <= 0 {
			rate = 1
		}
		targets = append(targets, planner.Target{
			Index: len(targets) + 1,
			Tier:  field(rec, tierCol),
			Name:  name,
			Rate:  rate,
		})
	}
	return targets, nil
}
