package orders

import "time"

type FlowKind string

const (
	FlowMachining    FlowKind = "machining"
	FlowEngineRepair FlowKind = "engine_repair"
)

func (k FlowKind) Valid() bool {
	return k == FlowMachining || k == FlowEngineRepair
}

// Durable field names. Presence of a key in Fields is what signals progress.
const (
	FieldPhotoRefs      = "photo_refs"
	FieldWorkType       = "work_type"
	FieldDimensionsInfo = "dimensions_info"
	FieldConditions     = "conditions"
	FieldUrgency        = "urgency"
	FieldComment        = "comment"
	FieldCarBrand       = "car_brand"
	FieldCarYear        = "car_year"
	FieldEngineIssue    = "engine_issue"
)

var knownFields = map[string]bool{
	FieldPhotoRefs:      true,
	FieldWorkType:       true,
	FieldDimensionsInfo: true,
	FieldConditions:     true,
	FieldUrgency:        true,
	FieldComment:        true,
	FieldCarBrand:       true,
	FieldCarYear:        true,
	FieldEngineIssue:    true,
}

func KnownField(name string) bool { return knownFields[name] }

type Fields map[string]string

func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type Customer struct {
	ID          int64
	Username    string
	DisplayName string
}

type Order struct {
	ID                  int64
	CustomerID          int64
	CustomerUsername    string
	CustomerDisplayName string
	Kind                FlowKind
	Status              Status // lihat status.go
	Fields              Fields
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
