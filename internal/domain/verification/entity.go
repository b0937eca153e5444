package verification

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Result is the normalized outcome of one verification: the analyzer's
// verdict plus the completion time and the stored-image reference.
type Result struct {
	IsAuthentic bool      `gorm:"column:is_authentic" json:"isAuthentic"`
	Confidence  float64   `gorm:"column:confidence" json:"confidence"`
	Timestamp   time.Time `gorm:"column:verified_at" json:"timestamp"`
	ImageRef    string    `gorm:"column:image_ref" json:"imageUrl"`
}

// Metadata is free-form client-supplied key/value data, stored verbatim and
// never interpreted. Persisted as a JSON column.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}
	if len(b) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// Record is one persisted verification. Immutable after creation: the only
// operations are create and read.
type Record struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerID   int64     `gorm:"column:owner_id;index" json:"-"`
	Result    Result    `gorm:"embedded" json:"verificationResult"`
	Metadata  Metadata  `gorm:"column:metadata;type:text" json:"metadata"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Record) TableName() string { return "verifications" }

var errConfidenceRange = errors.New("confidence out of [0,1]")

// Validate enforces the record invariants before a write.
func (r *Record) Validate() error {
	if r.OwnerID == 0 {
		return errors.New("owner id missing")
	}
	if r.Result.Confidence < 0 || r.Result.Confidence > 1 {
		return errConfidenceRange
	}
	return nil
}
