package record

import (
	"time"

	"github.com/google/uuid"
)

// Visit is one encounter at the health office. Invoices and orders hang off
// a visit.
type Visit struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	VisitDate time.Time `db:"visit_date" json:"visit_date"`
	SeenBy    uuid.UUID `db:"seen_by" json:"seen_by"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Prescription struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID      *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	Medication   string     `db:"medication" json:"medication"`
	Dosage       string     `db:"dosage" json:"dosage"`
	Instructions string     `db:"instructions" json:"instructions,omitempty"`
	PrescribedBy uuid.UUID  `db:"prescribed_by" json:"prescribed_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type LabOrder struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID   *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	TestName  string     `db:"test_name" json:"test_name"`
	Status    string     `db:"status" json:"status"`
	Result    *string    `db:"result" json:"result,omitempty"`
	OrderedBy uuid.UUID  `db:"ordered_by" json:"ordered_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Lab order statuses.
const (
	LabOrdered   = "ordered"
	LabCompleted = "completed"
	LabCancelled = "cancelled"
)

// Section names as they appear in an aggregated record.
const (
	SectionVisits        = "visits"
	SectionPrescriptions = "prescriptions"
	SectionLabOrders     = "lab_orders"
	SectionReferrals     = "referrals"
	SectionInvoices      = "invoices"
)

// AllSections lists every section an aggregated record can carry, in
// presentation order.
var AllSections = []string{
	SectionVisits,
	SectionPrescriptions,
	SectionLabOrders,
	SectionReferrals,
	SectionInvoices,
}

// Section is one slice of a patient record. A requested but empty section is
// reported explicitly rather than omitted, so clients can tell "nothing on
// file" apart from "not requested".
type Section struct {
	Name    string      `json:"name"`
	NoData  bool        `json:"no_data"`
	Entries interface{} `json:"entries,omitempty"`
}

// PatientRecord is the aggregated view. Compact mode caps every section at
// the most recent entries; verbose returns everything.
type PatientRecord struct {
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Mode        string    `json:"mode"`
	Sections    []Section `json:"sections"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CompactLimit is the per-section cap in compact mode.
const CompactLimit = 5
