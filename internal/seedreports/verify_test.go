package seedreports

import (
	"strings"
	"testing"

	"github.com/sweeply/tidyboard/internal/domain/types"
)

func TestVerifyOrderingAcceptsDenseRanks(t *testing.T) {
	board := []types.Entry{
		{Rank: 1, DeviceID: "device-002", Reports: 4, Points: 90},
		{Rank: 2, DeviceID: "device-000", Reports: 3, Points: 70},
		{Rank: 2, DeviceID: "device-001", Reports: 2, Points: 70},
		{Rank: 3, DeviceID: "device-003", Reports: 1, Points: 10},
	}
	if err := verifyOrdering("city", board); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyOrderingRejectsUnsortedPoints(t *testing.T) {
	board := []types.Entry{
		{Rank: 1, DeviceID: "device-000", Points: 50},
		{Rank: 2, DeviceID: "device-001", Points: 80},
	}
	if err := verifyOrdering("city", board); err == nil {
		t.Fatal("expected an error for ascending points")
	}
}

func TestVerifyOrderingRejectsSplitTies(t *testing.T) {
	board := []types.Entry{
		{Rank: 1, DeviceID: "device-000", Points: 70},
		{Rank: 2, DeviceID: "device-001", Points: 70},
	}
	err := verifyOrdering("city", board)
	if err == nil || !strings.Contains(err.Error(), "tie") {
		t.Fatalf("expected a tie error, got %v", err)
	}
}

func TestVerifyOrderingRejectsTiesOutOfIDOrder(t *testing.T) {
	board := []types.Entry{
		{Rank: 1, DeviceID: "device-001", Points: 70},
		{Rank: 1, DeviceID: "device-000", Points: 70},
	}
	if err := verifyOrdering("city", board); err == nil {
		t.Fatal("expected an error for ties out of id order")
	}
}

func TestVerifyOrderingRejectsRankGaps(t *testing.T) {
	board := []types.Entry{
		{Rank: 1, DeviceID: "device-000", Points: 70},
		{Rank: 3, DeviceID: "device-001", Points: 50},
	}
	if err := verifyOrdering("city", board); err == nil {
		t.Fatal("expected an error for a rank gap")
	}
}

func TestVerifyOrderingRejectsBoardsNotStartingAtRankOne(t *testing.T) {
	board := []types.Entry{{Rank: 2, DeviceID: "device-000", Points: 70}}
	if err := verifyOrdering("city", board); err == nil {
		t.Fatal("expected an error for a board starting past rank 1")
	}
}

func TestVerifyRankConsistency(t *testing.T) {
	board := []types.Entry{{Rank: 1, DeviceID: "device-000", Reports: 3, Points: 70}}
	ranks := map[string]types.Entry{
		"device-000": {Rank: 1, DeviceID: "device-000", Reports: 3, Points: 70},
	}
	if err := verifyRankConsistency(board, ranks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ranks["device-000"] = types.Entry{Rank: 2, DeviceID: "device-000", Reports: 3, Points: 70}
	if err := verifyRankConsistency(board, ranks); err == nil {
		t.Fatal("expected an error when the rank endpoint disagrees")
	}
}

func TestVerifyTotalsAgainstBaseline(t *testing.T) {
	accepted := map[string]int{"device-000": 2}
	baseline := map[string]types.Entry{
		"device-000": {DeviceID: "device-000", Reports: 3, Points: 30},
	}
	ranks := map[string]types.Entry{
		"device-000": {DeviceID: "device-000", Reports: 5, Points: 80},
	}
	if err := verifyTotals(accepted, baseline, ranks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ranks["device-000"] = types.Entry{DeviceID: "device-000", Reports: 4, Points: 80}
	if err := verifyTotals(accepted, baseline, ranks); err == nil {
		t.Fatal("expected an error when report counts do not add up")
	}
}

func TestVerifyTotalsFromEmptyBaseline(t *testing.T) {
	accepted := map[string]int{"device-000": 2}
	ranks := map[string]types.Entry{
		"device-000": {DeviceID: "device-000", Reports: 2, Points: 20},
	}
	if err := verifyTotals(accepted, map[string]types.Entry{}, ranks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyTotalsRequiresARank(t *testing.T) {
	accepted := map[string]int{"device-000": 1}
	if err := verifyTotals(accepted, map[string]types.Entry{}, map[string]types.Entry{}); err == nil {
		t.Fatal("expected an error for an accepted device with no rank")
	}
}

func TestVerifyTotalsRequiresPointsGrowth(t *testing.T) {
	accepted := map[string]int{"device-000": 1}
	baseline := map[string]types.Entry{
		"device-000": {DeviceID: "device-000", Reports: 1, Points: 50},
	}
	ranks := map[string]types.Entry{
		"device-000": {DeviceID: "device-000", Reports: 2, Points: 50},
	}
	if err := verifyTotals(accepted, baseline, ranks); err == nil {
		t.Fatal("expected an error when points do not grow")
	}
}

func TestVerifyAreaMembership(t *testing.T) {
	boards := map[string][]types.Entry{
		"NW3": {{Rank: 1, DeviceID: "device-000", Points: 10}},
	}
	deviceAreas := map[string]map[string]bool{
		"device-000": {"NW3": true},
	}
	if err := verifyAreaMembership(boards, deviceAreas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boards["SE1"] = []types.Entry{{Rank: 1, DeviceID: "device-000", Points: 10}}
	if err := verifyAreaMembership(boards, deviceAreas); err == nil {
		t.Fatal("expected an error for a device on a board it never reported to")
	}
}

func TestVerifyResultsCountsIssues(t *testing.T) {
	config := &Config{}
	v := &verification{
		city: []types.Entry{
			{Rank: 1, DeviceID: "device-000", Points: 50},
			{Rank: 3, DeviceID: "device-001", Points: 40},
		},
		ranks: map[string]types.Entry{
			"device-000": {Rank: 1, DeviceID: "device-000", Points: 50},
		},
		baseline: map[string]types.Entry{"device-000": {DeviceID: "device-000"}},
		accepted: map[string]int{},
	}

	err := verifyResults(config, v)
	if err == nil || !strings.Contains(err.Error(), "1 issue") {
		t.Fatalf("expected one ordering issue, got %v", err)
	}
}

func TestVerifyResultsPassesOnConsistentData(t *testing.T) {
	config := &Config{}
	v := &verification{
		city: []types.Entry{
			{Rank: 1, DeviceID: "device-001", Reports: 2, Points: 80},
			{Rank: 2, DeviceID: "device-000", Reports: 1, Points: 40},
		},
		areaBoards: map[string][]types.Entry{
			"NW3": {
				{Rank: 1, DeviceID: "device-001", Reports: 2, Points: 80},
				{Rank: 2, DeviceID: "device-000", Reports: 1, Points: 40},
			},
		},
		ranks: map[string]types.Entry{
			"device-000": {Rank: 2, DeviceID: "device-000", Reports: 1, Points: 40},
			"device-001": {Rank: 1, DeviceID: "device-001", Reports: 2, Points: 80},
		},
		baseline: map[string]types.Entry{},
		accepted: map[string]int{"device-000": 1, "device-001": 2},
		deviceAreas: map[string]map[string]bool{
			"device-000": {"NW3": true},
			"device-001": {"NW3": true},
		},
	}

	if err := verifyResults(config, v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
