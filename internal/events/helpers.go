package events

import (
	"encoding/json"
	"fmt"
)

// SetStepProgressData sets the Data field with StepProgressData in a type-safe way.
func (e *GoalEvent) SetStepProgressData(data StepProgressData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert StepProgressData to map: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetStepProgressData retrieves the Data field as StepProgressData.
func (e *GoalEvent) GetStepProgressData() (*StepProgressData, error) {
	var data StepProgressData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse StepProgressData: %w", err)
	}
	return &data, nil
}

// SetCollaboratorFailureData sets the Data field with CollaboratorFailureData in a type-safe way.
func (e *GoalEvent) SetCollaboratorFailureData(data CollaboratorFailureData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert CollaboratorFailureData to map: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetCollaboratorFailureData retrieves the Data field as CollaboratorFailureData.
func (e *GoalEvent) GetCollaboratorFailureData() (*CollaboratorFailureData, error) {
	var data CollaboratorFailureData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse CollaboratorFailureData: %w", err)
	}
	return &data, nil
}

// SetTransitionData sets the Data field with TransitionData in a type-safe way.
func (e *GoalEvent) SetTransitionData(data TransitionData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert TransitionData to map: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetTransitionData retrieves the Data field as TransitionData.
func (e *GoalEvent) GetTransitionData() (*TransitionData, error) {
	var data TransitionData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse TransitionData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
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
