package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <state.json>",
	Short: "Show the contents of a persisted learning state file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	version := "legacy"
	if v, ok := top["version"]; ok {
		_ = json.Unmarshal(v, &version)
	}
	fmt.Printf("file:    %s\n", args[0])
	fmt.Printf("schema:  %s\n", version)

	if entity, ok := top["entity_id"]; ok {
		var id string
		_ = json.Unmarshal(entity, &id)
		fmt.Printf("entity:  %s\n", id)
	}
	if updated, ok := top["last_updated"]; ok {
		var ts string
		_ = json.Unmarshal(updated, &ts)
		fmt.Printf("updated: %s\n", ts)
	}

	learning := top["learning_data"]
	if learning == nil {
		// Legacy files store the learning payload at the top level; loading
		// them through the service migrates them to the current schema.
		fmt.Println("note:    legacy layout, will be migrated on next load")
		learning = raw
	}

	var payload struct {
		EngineState struct {
			EnableLearning bool `json:"enable_learning"`
		} `json:"engine_state"`
		LearnerData struct {
			Samples []json.RawMessage `json:"samples"`
		} `json:"learner_data"`
		HysteresisData struct {
			StartTemps []float64 `json:"start_temps"`
			StopTemps  []float64 `json:"stop_temps"`
		} `json:"hysteresis_data"`
	}
	if err := json.Unmarshal(learning, &payload); err != nil {
		return fmt.Errorf("parse learning data: %w", err)
	}

	fmt.Printf("learning enabled:      %v\n", payload.EngineState.EnableLearning)
	fmt.Printf("learner samples:       %d\n", len(payload.LearnerData.Samples))
	fmt.Printf("hysteresis starts:     %d\n", len(payload.HysteresisData.StartTemps))
	fmt.Printf("hysteresis stops:      %d\n", len(payload.HysteresisData.StopTemps))
	return nil
}
