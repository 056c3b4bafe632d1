package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// VisitStatus represents the overall status of a visit
type VisitStatus int

const (
	VisitStatusActive    VisitStatus = 0
	VisitStatusCompleted VisitStatus = 1
	VisitStatusCancelled VisitStatus = 2
)

func (s VisitStatus) String() string {
	return [...]string{"Active", "Completed", "Cancelled"}[s]
}

// IsTerminal reports whether the visit can no longer be mutated
func (s VisitStatus) IsTerminal() bool {
	return s == VisitStatusCompleted || s == VisitStatusCancelled
}

func (s VisitStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *VisitStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = VisitStatus(i)
		return nil
	}
	switch str {
	case "Active":
		*s = VisitStatusActive
	case "Completed":
		*s = VisitStatusCompleted
	case "Cancelled":
		*s = VisitStatusCancelled
	}
	return nil
}

func (s VisitStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *VisitStatus) Scan(value interface{}) error {
	if value == nil {
		*s = VisitStatusActive
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = VisitStatus(v)
	case int:
		*s = VisitStatus(v)
	}
	return nil
}
