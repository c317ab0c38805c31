package seedreports

import (
	"fmt"
	"log"
	"sort"

	"github.com/sweeply/tidyboard/internal/domain/types"
)

// verification bundles everything the post-run checks compare: the
// boards as served, the per-device rank lookups, the pre-run baseline,
// and what this run actually submitted.
type verification struct {
	city        []types.Entry
	areaBoards  map[string][]types.Entry
	ranks       map[string]types.Entry
	baseline    map[string]types.Entry
	accepted    map[string]int
	deviceAreas map[string]map[string]bool
}

// verifyResults checks the boards and ranks against what was submitted.
func verifyResults(config *Config, v *verification) error {
	log.Println("🔍 Verifying results...")

	if len(v.ranks) == 0 {
		return fmt.Errorf("no device ranks to verify")
	}

	issues := 0

	if err := verifyOrdering("city", v.city); err != nil {
		log.Printf("⚠️  Ordering: %v", err)
		issues++
	}
	for _, area := range sortedAreaKeys(v.areaBoards) {
		if err := verifyOrdering("area "+area, v.areaBoards[area]); err != nil {
			log.Printf("⚠️  Ordering: %v", err)
			issues++
		}
	}

	if err := verifyRankConsistency(v.city, v.ranks); err != nil {
		log.Printf("⚠️  Rank consistency: %v", err)
		issues++
	} else {
		log.Println("✅ Board and rank endpoint agree")
	}

	if err := verifyTotals(v.accepted, v.baseline, v.ranks); err != nil {
		log.Printf("⚠️  Totals: %v", err)
		issues++
	} else {
		log.Println("✅ Per-device report totals match what was accepted")
	}

	// Membership can only be pinned down when the run started against
	// an empty board; earlier runs may have put devices anywhere.
	if len(v.baseline) == 0 {
		if err := verifyAreaMembership(v.areaBoards, v.deviceAreas); err != nil {
			log.Printf("⚠️  Area membership: %v", err)
			issues++
		} else {
			log.Println("✅ Devices appear only on boards of areas they reported in")
		}
	}

	displayTopEntries(v.city, config.Verbose)

	if issues > 0 {
		return fmt.Errorf("verification found %d issue(s)", issues)
	}

	log.Println("✅ Result verification completed")
	return nil
}

// verifyOrdering checks that a board descends by points with ties
// sharing a rank in device id order, and that ranks are dense.
func verifyOrdering(label string, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if entries[0].Rank != 1 {
		return fmt.Errorf("%s board starts at rank %d, want 1", label, entries[0].Rank)
	}

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		switch {
		case cur.Points > prev.Points:
			return fmt.Errorf("%s board not sorted: %s (%.1f points) listed below %s (%.1f points)",
				label, cur.DeviceID, cur.Points, prev.DeviceID, prev.Points)
		case cur.Points == prev.Points:
			if cur.Rank != prev.Rank {
				return fmt.Errorf("%s board: %s and %s tie on %.1f points but hold ranks %d and %d",
					label, prev.DeviceID, cur.DeviceID, cur.Points, prev.Rank, cur.Rank)
			}
			if cur.DeviceID < prev.DeviceID {
				return fmt.Errorf("%s board: tied devices %s and %s are not in id order",
					label, prev.DeviceID, cur.DeviceID)
			}
		default:
			if cur.Rank != prev.Rank+1 {
				return fmt.Errorf("%s board: rank jumps from %d to %d after a points drop",
					label, prev.Rank, cur.Rank)
			}
		}
	}

	return nil
}

// verifyRankConsistency checks every board entry against the rank
// endpoint's answer for the same device.
func verifyRankConsistency(board []types.Entry, ranks map[string]types.Entry) error {
	for _, e := range board {
		r, ok := ranks[e.DeviceID]
		if !ok {
			continue
		}
		if r.Rank != e.Rank || r.Points != e.Points || r.Reports != e.Reports {
			return fmt.Errorf("device %s: board says rank %d, %.1f points, %d reports; rank endpoint says rank %d, %.1f points, %d reports",
				e.DeviceID, e.Rank, e.Points, e.Reports, r.Rank, r.Points, r.Reports)
		}
	}
	return nil
}

// verifyTotals checks that every device's report count grew by exactly
// the number of reports the service accepted for it this run.
func verifyTotals(accepted map[string]int, baseline, ranks map[string]types.Entry) error {
	devices := make([]string, 0, len(accepted))
	for device := range accepted {
		devices = append(devices, device)
	}
	sort.Strings(devices)

	for _, device := range devices {
		count := accepted[device]
		if count == 0 {
			continue
		}

		entry, ok := ranks[device]
		if !ok {
			return fmt.Errorf("device %s had %d reports accepted but holds no rank", device, count)
		}

		want := baseline[device].Reports + count
		if entry.Reports != want {
			return fmt.Errorf("device %s: %d reports on record, want %d (%d before the run plus %d accepted)",
				device, entry.Reports, want, baseline[device].Reports, count)
		}
		if entry.Points <= baseline[device].Points {
			return fmt.Errorf("device %s: points stuck at %.1f despite %d accepted reports",
				device, entry.Points, count)
		}
	}

	return nil
}

// verifyAreaMembership checks that devices only show up on boards of
// areas they actually reported in. Only meaningful on a fresh service.
func verifyAreaMembership(areaBoards map[string][]types.Entry, deviceAreas map[string]map[string]bool) error {
	for _, area := range sortedAreaKeys(areaBoards) {
		for _, e := range areaBoards[area] {
			areas, known := deviceAreas[e.DeviceID]
			if !known {
				continue
			}
			if !areas[area] {
				return fmt.Errorf("device %s appears on the %s board but never reported there", e.DeviceID, area)
			}
		}
	}
	return nil
}

// displayTopEntries shows the head of the city board.
func displayTopEntries(city []types.Entry, verbose bool) {
	if len(city) == 0 {
		log.Println("🏆 City board is empty")
		return
	}

	topN := minInt(10, len(city))
	log.Printf("🏆 Top %d devices on the city board:", topN)
	for i := 0; i < topN; i++ {
		e := city[i]
		log.Printf("   %d. %s - %.1f points over %d reports", e.Rank, e.DeviceID, e.Points, e.Reports)
	}

	if verbose {
		avg := 0.0
		for _, e := range city {
			avg += e.Points
		}
		avg /= float64(len(city))

		log.Printf(`📊 Point statistics:
   Average: %.1f
   Maximum: %.1f
   Minimum: %.1f
`, avg, city[0].Points, city[len(city)-1].Points)
	}
}

func sortedAreaKeys(boards map[string][]types.Entry) []string {
	keys := make([]string, 0, len(boards))
	for area := range boards {
		keys = append(keys, area)
	}
	sort.Strings(keys)
	return keys
}
