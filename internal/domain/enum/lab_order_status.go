package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// LabOrderStatus represents the state of a doctor-ordered lab test
type LabOrderStatus int

const (
	LabOrderStatusOrdered   LabOrderStatus = 0
	LabOrderStatusCompleted LabOrderStatus = 1
	LabOrderStatusCancelled LabOrderStatus = 2
)

func (s LabOrderStatus) String() string {
	return [...]string{"Ordered", "Completed", "Cancelled"}[s]
}

func (s LabOrderStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *LabOrderStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = LabOrderStatus(i)
		return nil
	}
	switch str {
	case "Ordered":
		*s = LabOrderStatusOrdered
	case "Completed":
		*s = LabOrderStatusCompleted
	case "Cancelled":
		*s = LabOrderStatusCancelled
	}
	return nil
}

func (s LabOrderStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *LabOrderStatus) Scan(value interface{}) error {
	if value == nil {
		*s = LabOrderStatusOrdered
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = LabOrderStatus(v)
	case int:
		*s = LabOrderStatus(v)
	}
	return nil
}
