// Package jsonutil leniently parses JSON fragments an LLM may emit
// malformed: missing quotes, trailing commas, single quotes, or full Hjson.
// Adapted from the teacher's "Instructor pattern" (pkg/core/utils/json_validator.go)
// and generalized from a financial-schema validator into a pure parsing
// helper for fragments such as an optional trailing JSON block after an
// agent's prose. No other package in this module calls it; the Agent
// Runner does not parse such a block.
package jsonutil

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// SmartParse tries, in order: a direct json.Unmarshal, a repair pass via
// json-repair, and finally the most lenient Hjson parser. It returns the
// JSON text that actually unmarshaled successfully into schema, or an error
// if every strategy failed.
func SmartParse(input string, schema any) (string, error) {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return input, nil
	}

	if repaired, err := jsonrepair.RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	var hjsonResult any
	if err := hjson.Unmarshal([]byte(input), &hjsonResult); err == nil {
		if asJSON, err := json.Marshal(hjsonResult); err == nil {
			if err := json.Unmarshal(asJSON, schema); err == nil {
				return string(asJSON), nil
			}
		}
	}

	return "", fmt.Errorf("jsonutil: all parsing strategies failed")
}
