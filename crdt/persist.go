package crdt

import (
	"encoding/json"
	"fmt"
	"os"
)

// Save writes the session's operation log to a file. The log, not the
// projected text, is the durable form: replaying it reconstructs the full
// document state, tombstones included.
func Save(fileName string, s *Session) error {
	data, err := json.Marshal(s.Log())
	if err != nil {
		return fmt.Errorf("failed to encode operation log: %w", err)
	}

	if err := os.WriteFile(fileName, data, 0644); err != nil {
		return fmt.Errorf("failed to save operation log: %w", err)
	}
	return nil
}

// Load reads an operation log from a file. Malformed operations in the
// log are a decode error; a valid log replays cleanly in any order.
func Load(fileName string) ([]Operation, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read operation log: %w", err)
	}

	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("failed to decode operation log: %w", err)
	}
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, err
		}
	}
	return ops, nil
}
