package main

import (
	"encoding/json"
	"fmt"
	"os"

	"anagenesis/pkg/anagenesis"
)

// loadRunRequestFromConfig reads a JSON run configuration. Keys mirror the
// run command's flags in snake_case; unknown keys and mistyped values are
// ignored so configs stay forward compatible.
func loadRunRequestFromConfig(path string) (anagenesis.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return anagenesis.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return anagenesis.RunRequest{}, err
	}

	var req anagenesis.RunRequest
	if v, ok := asString(raw["name"]); ok {
		req.Name = v
	}
	if v, ok := asString(raw["mode"]); ok {
		req.Mode = v
	}
	if v, ok := asString(raw["benchmark"]); ok {
		req.Benchmark = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["iterations"]); ok {
		req.Iterations = v
	}
	if v, ok := asInt(raw["genome_length"]); ok {
		req.GenomeLength = v
	}
	if v, ok := asInt(raw["specie_count"]); ok {
		req.SpecieCount = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asFloat64(raw["stop_fitness"]); ok {
		req.StopFitness = v
	}
	if v, ok := asInt(raw["max_evaluations"]); ok {
		req.MaxEvaluations = v
	}
	if v, ok := asFloat64(raw["min_viable_fitness"]); ok {
		req.MinViableFitness = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asBool(raw["per_species_batch"]); ok {
		req.PerSpeciesBatch = v
	}
	if v, ok := asString(raw["removal_policy"]); ok {
		req.RemovalPolicy = v
	}
	if v, ok := asInt(raw["respeciate_interval"]); ok {
		req.RespeciateInterval = v
	}
	if v, ok := asFloat64(raw["complexity_ceiling"]); ok {
		req.ComplexityCeiling = v
	}
	if v, ok := asInt(raw["min_simplify_generations"]); ok {
		req.MinSimplifyGenerations = v
	}
	if v, ok := asInt(raw["update_interval"]); ok {
		req.UpdateInterval = v
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (anagenesis.RunRequest, error) {
	if configPath == "" {
		return anagenesis.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return anagenesis.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
