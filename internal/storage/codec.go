package storage

import (
	"encoding/json"
	"errors"

	"anagenesis/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current schema and codec version on a versioned record.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeIterations(iterations []model.IterationRecord) ([]byte, error) {
	return json.Marshal(iterations)
}

func DecodeIterations(data []byte) ([]model.IterationRecord, error) {
	var iterations []model.IterationRecord
	if err := json.Unmarshal(data, &iterations); err != nil {
		return nil, err
	}
	for _, it := range iterations {
		if err := checkVersion(it.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return iterations, nil
}

func EncodeSpeciesHistory(history []model.SpeciesIteration) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeSpeciesHistory(data []byte) ([]model.SpeciesIteration, error) {
	var history []model.SpeciesIteration
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	for _, h := range history {
		if err := checkVersion(h.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return history, nil
}

func EncodeChampion(c model.ChampionRecord) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeChampion(data []byte) (model.ChampionRecord, error) {
	var champion model.ChampionRecord
	if err := json.Unmarshal(data, &champion); err != nil {
		return model.ChampionRecord{}, err
	}
	if err := checkVersion(champion.VersionedRecord); err != nil {
		return model.ChampionRecord{}, err
	}
	return champion, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
