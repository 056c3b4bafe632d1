package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// PrescriptionStatus represents the dispensing state of a prescription
type PrescriptionStatus int

const (
	PrescriptionStatusPending   PrescriptionStatus = 0
	PrescriptionStatusDispensed PrescriptionStatus = 1
	PrescriptionStatusCancelled PrescriptionStatus = 2
)

func (s PrescriptionStatus) String() string {
	return [...]string{"Pending", "Dispensed", "Cancelled"}[s]
}

func (s PrescriptionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PrescriptionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = PrescriptionStatus(i)
		return nil
	}
	switch str {
	case "Pending":
		*s = PrescriptionStatusPending
	case "Dispensed":
		*s = PrescriptionStatusDispensed
	case "Cancelled":
		*s = PrescriptionStatusCancelled
	}
	return nil
}

func (s PrescriptionStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *PrescriptionStatus) Scan(value interface{}) error {
	if value == nil {
		*s = PrescriptionStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = PrescriptionStatus(v)
	case int:
		*s = PrescriptionStatus(v)
	}
	return nil
}
