package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// StageStatus represents the sub-status of a single stage within a visit
type StageStatus int

const (
	StageStatusPending    StageStatus = 0
	StageStatusInProgress StageStatus = 1
	StageStatusCompleted  StageStatus = 2
	StageStatusSkipped    StageStatus = 3
)

func (s StageStatus) String() string {
	return [...]string{"Pending", "InProgress", "Completed", "Skipped"}[s]
}

func (s StageStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *StageStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = StageStatus(i)
		return nil
	}
	switch str {
	case "Pending":
		*s = StageStatusPending
	case "InProgress":
		*s = StageStatusInProgress
	case "Completed":
		*s = StageStatusCompleted
	case "Skipped":
		*s = StageStatusSkipped
	}
	return nil
}

func (s StageStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *StageStatus) Scan(value interface{}) error {
	if value == nil {
		*s = StageStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = StageStatus(v)
	case int:
		*s = StageStatus(v)
	}
	return nil
}
