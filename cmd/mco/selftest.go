package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"mco/codes"
	"mco/engine"
	"mco/stays"
)

// expectedRow mirrors one entry of a ".expected.json" side-car holding
// reference GenRSA outputs for an input file.
type expectedRow struct {
	BillID     int32  `json:"bill_id"`
	ClusterLen int    `json:"cluster_len"`
	GHM        string `json:"ghm"`
	Error      int16  `json:"error"`
	GHS        int    `json:"ghs"`
}

// loadExpected merges <path>.expected.json into the test map when the
// side-car exists.
func loadExpected(path string, tests map[int32]stays.Test) error {
	sidecar := path + ".expected.json"
	data, err := os.ReadFile(sidecar)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", sidecar, err)
	}

	var rows []expectedRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parsing %s: %w", sidecar, err)
	}

	for _, row := range rows {
		test := stays.Test{
			BillID:     row.BillID,
			ClusterLen: row.ClusterLen,
			Error:      row.Error,
			GHS:        codes.GHS(row.GHS),
		}
		if row.GHM != "" {
			ghm, err := codes.ParseGHM(row.GHM)
			if err != nil {
				return fmt.Errorf("%s: bill %d: %w", sidecar, row.BillID, err)
			}
			test.GHM = ghm
		}
		tests[row.BillID] = test
	}
	return nil
}

// runSelfTest compares each cluster result with its expected values and
// reports the number of mismatching clusters.
func runSelfTest(results []engine.Result, tests map[int32]stays.Test, logger *log.Logger) int {
	mismatches := 0
	for i := range results {
		r := &results[i]
		if len(r.Stays) == 0 {
			continue
		}
		test, ok := tests[r.Stays[0].BillID]
		if !ok {
			continue
		}

		bad := false
		if test.GHM.IsValid() && test.GHM != r.GHM {
			logger.Printf("bill %d: GHM %s, expected %s", test.BillID, r.GHM, test.GHM)
			bad = true
		}
		if test.Error != r.MainError {
			logger.Printf("bill %d: error %d, expected %d", test.BillID, r.MainError, test.Error)
			bad = true
		}
		if test.GHS != codes.NoGHS && test.GHS != r.GHS {
			logger.Printf("bill %d: GHS %s, expected %s", test.BillID, r.GHS, test.GHS)
			bad = true
		}
		if test.ClusterLen != 0 && test.ClusterLen != len(r.Stays) {
			logger.Printf("bill %d: cluster of %d stays, expected %d", test.BillID, len(r.Stays), test.ClusterLen)
			bad = true
		}
		if bad {
			mismatches++
		}
	}
	return mismatches
}
