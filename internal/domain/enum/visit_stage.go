package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// VisitStage represents a station in the clinical workflow
type VisitStage int

const (
	StageReception VisitStage = 0
	StageNurse     VisitStage = 1
	StageDoctor    VisitStage = 2
	StageLab       VisitStage = 3
	StagePharmacy  VisitStage = 4
	StageBilling   VisitStage = 5
	StageCompleted VisitStage = 6
)

var visitStageNames = [...]string{
	"Reception", "Nurse", "Doctor", "Lab", "Pharmacy", "Billing", "Completed",
}

func (s VisitStage) String() string {
	if s < StageReception || s > StageCompleted {
		return "Unknown"
	}
	return visitStageNames[s]
}

// IsValid reports whether the value maps to a declared stage
func (s VisitStage) IsValid() bool {
	return s >= StageReception && s <= StageCompleted
}

// ParseVisitStage resolves a stage name to its enum value
func ParseVisitStage(name string) (VisitStage, bool) {
	for i, n := range visitStageNames {
		if n == name {
			return VisitStage(i), true
		}
	}
	return StageReception, false
}

func (s VisitStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *VisitStage) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		// Try unmarshaling as int
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = VisitStage(i)
		return nil
	}
	if parsed, ok := ParseVisitStage(str); ok {
		*s = parsed
	}
	return nil
}

func (s VisitStage) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *VisitStage) Scan(value interface{}) error {
	if value == nil {
		*s = StageReception
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = VisitStage(v)
	case int:
		*s = VisitStage(v)
	}
	return nil
}
