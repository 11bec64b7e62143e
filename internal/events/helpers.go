package events

import (
	"encoding/json"
	"fmt"
)

// structToMap converts a struct to a map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}

// SetMergeStartedData sets the Data field with MergeStartedData in a type-safe way.
func (e *MergeEvent) SetMergeStartedData(data MergeStartedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert MergeStartedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetMergeStartedData retrieves MergeStartedData from the Data field.
func (e *MergeEvent) GetMergeStartedData() (*MergeStartedData, error) {
	var data MergeStartedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse MergeStartedData: %w", err)
	}
	return &data, nil
}

// SetMergeCompletedData sets the Data field with MergeCompletedData in a type-safe way.
func (e *MergeEvent) SetMergeCompletedData(data MergeCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert MergeCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetMergeCompletedData retrieves MergeCompletedData from the Data field.
func (e *MergeEvent) GetMergeCompletedData() (*MergeCompletedData, error) {
	var data MergeCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse MergeCompletedData: %w", err)
	}
	return &data, nil
}

// SetMergeCleanupWarningData sets the Data field with MergeCleanupWarningData in a type-safe way.
func (e *MergeEvent) SetMergeCleanupWarningData(data MergeCleanupWarningData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert MergeCleanupWarningData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetMergeCleanupWarningData retrieves MergeCleanupWarningData from the Data field.
func (e *MergeEvent) GetMergeCleanupWarningData() (*MergeCleanupWarningData, error) {
	var data MergeCleanupWarningData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse MergeCleanupWarningData: %w", err)
	}
	return &data, nil
}

// SetMergeFailedData sets the Data field with MergeFailedData in a type-safe way.
func (e *MergeEvent) SetMergeFailedData(data MergeFailedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert MergeFailedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetMergeFailedData retrieves MergeFailedData from the Data field.
func (e *MergeEvent) GetMergeFailedData() (*MergeFailedData, error) {
	var data MergeFailedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse MergeFailedData: %w", err)
	}
	return &data, nil
}

// SetDetectionCompletedData sets the Data field with DetectionCompletedData in a type-safe way.
func (e *MergeEvent) SetDetectionCompletedData(data DetectionCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert DetectionCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetDetectionCompletedData retrieves DetectionCompletedData from the Data field.
func (e *MergeEvent) GetDetectionCompletedData() (*DetectionCompletedData, error) {
	var data DetectionCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse DetectionCompletedData: %w", err)
	}
	return &data, nil
}

// SetHistoryPrunedData sets the Data field with HistoryPrunedData in a type-safe way.
func (e *MergeEvent) SetHistoryPrunedData(data HistoryPrunedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert HistoryPrunedData: %w", err)
	}
	e.Data = dataMap
	return nil
}
