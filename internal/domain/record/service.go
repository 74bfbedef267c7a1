package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/munihealth/portal/internal/domain/auth"
	"github.com/munihealth/portal/internal/domain/billing"
	"github.com/munihealth/portal/internal/domain/referral"
	"github.com/munihealth/portal/internal/platform/web"
)

// ReferralSource and InvoiceSource are the slices of the neighbouring
// services the aggregator needs. Both are satisfied by the real services.
type ReferralSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, status referral.Status, limit, offset int) ([]*referral.Referral, int, error)
}

type InvoiceSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, status billing.Status, limit, offset int) ([]*billing.Invoice, int, error)
}

// PatientSource resolves the patient header of an aggregated record.
type PatientSource interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*auth.Patient, error)
}

type Service struct {
	repo      Repository
	referrals ReferralSource
	invoices  InvoiceSource
	patients  PatientSource
}

func NewService(repo Repository, referrals ReferralSource, invoices InvoiceSource, patients PatientSource) *Service {
	return &Service{repo: repo, referrals: referrals, invoices: invoices, patients: patients}
}

// Aggregate assembles a patient record from the requested sections. An empty
// sections argument means all of them. Each section is fetched on its own and
// reported even when empty; unrequested sections are omitted entirely.
// Compact mode caps each section at the CompactLimit most recent entries.
func (s *Service) Aggregate(ctx context.Context, patientID uuid.UUID, sections []string, verbose bool) (*PatientRecord, error) {
	requested, err := requestedSections(sections)
	if err != nil {
		return nil, err
	}

	pat, err := s.patients.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, web.E(web.KindNotFound, "patient not found")
		}
		return nil, web.Internal(err)
	}

	limit := CompactLimit
	mode := "compact"
	if verbose {
		limit = 0
		mode = "verbose"
	}

	rec := &PatientRecord{
		PatientID:   pat.ID,
		PatientName: pat.FullName,
		Mode:        mode,
		GeneratedAt: time.Now(),
	}

	if requested[SectionVisits] {
		visits, err := s.repo.ListVisits(ctx, patientID, limit)
		if err != nil {
			return nil, web.Internal(err)
		}
		rec.Sections = append(rec.Sections, section(SectionVisits, visits, len(visits)))
	}

	if requested[SectionPrescriptions] {
		prescriptions, err := s.repo.ListPrescriptions(ctx, patientID, limit)
		if err != nil {
			return nil, web.Internal(err)
		}
		rec.Sections = append(rec.Sections, section(SectionPrescriptions, prescriptions, len(prescriptions)))
	}

	if requested[SectionLabOrders] {
		labs, err := s.repo.ListLabOrders(ctx, patientID, limit)
		if err != nil {
			return nil, web.Internal(err)
		}
		rec.Sections = append(rec.Sections, section(SectionLabOrders, labs, len(labs)))
	}

	if requested[SectionReferrals] {
		refs, _, err := s.referrals.ListByPatient(ctx, patientID, "", listLimit(limit), 0)
		if err != nil {
			return nil, err
		}
		rec.Sections = append(rec.Sections, section(SectionReferrals, refs, len(refs)))
	}

	if requested[SectionInvoices] {
		invoices, _, err := s.invoices.ListByPatient(ctx, patientID, "", listLimit(limit), 0)
		if err != nil {
			return nil, err
		}
		rec.Sections = append(rec.Sections, section(SectionInvoices, invoices, len(invoices)))
	}

	return rec, nil
}

// requestedSections resolves the caller's section keys into a lookup set,
// rejecting keys that are not part of the record.
func requestedSections(sections []string) (map[string]bool, error) {
	req := make(map[string]bool, len(AllSections))
	if len(sections) == 0 {
		for _, name := range AllSections {
			req[name] = true
		}
		return req, nil
	}
	known := make(map[string]bool, len(AllSections))
	for _, name := range AllSections {
		known[name] = true
	}
	for _, name := range sections {
		if !known[name] {
			return nil, web.Ef(web.KindValidation, "unknown record section %q", name)
		}
		req[name] = true
	}
	return req, nil
}

// listLimit adapts the 0-means-all convention to the paginated neighbours.
func listLimit(limit int) int {
	if limit == 0 {
		return 1000
	}
	return limit
}

func section(name string, entries interface{}, n int) Section {
	if n == 0 {
		return Section{Name: name, NoData: true}
	}
	return Section{Name: name, Entries: entries}
}

// CreateVisit records an encounter.
func (s *Service) CreateVisit(ctx context.Context, v *Visit) error {
	if v.PatientID == uuid.Nil || v.SeenBy == uuid.Nil {
		return web.E(web.KindValidation, "patient_id and seen_by are required")
	}
	if v.VisitDate.IsZero() {
		v.VisitDate = time.Now()
	}
	if err := s.repo.CreateVisit(ctx, v); err != nil {
		return web.Internal(err)
	}
	return nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := s.repo.GetVisit(ctx, id)
	if err != nil {
		return nil, web.E(web.KindNotFound, "visit not found")
	}
	return v, nil
}

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil || p.Medication == "" || p.Dosage == "" {
		return web.E(web.KindValidation, "patient_id, medication and dosage are required")
	}
	if err := s.repo.CreatePrescription(ctx, p); err != nil {
		return web.Internal(err)
	}
	return nil
}

func (s *Service) CreateLabOrder(ctx context.Context, o *LabOrder) error {
	if o.PatientID == uuid.Nil || o.TestName == "" {
		return web.E(web.KindValidation, "patient_id and test_name are required")
	}
	o.Status = LabOrdered
	if err := s.repo.CreateLabOrder(ctx, o); err != nil {
		return web.Internal(err)
	}
	return nil
}

// CompleteLabOrder attaches a result and closes the order.
func (s *Service) CompleteLabOrder(ctx context.Context, id uuid.UUID, result string) (*LabOrder, error) {
	o, err := s.repo.GetLabOrder(ctx, id)
	if err != nil {
		return nil, web.E(web.KindNotFound, "lab order not found")
	}
	if o.Status != LabOrdered {
		return nil, web.Ef(web.KindInvalidTransition, "cannot complete a %s lab order", o.Status)
	}
	o.Status = LabCompleted
	o.Result = &result
	if err := s.repo.UpdateLabOrder(ctx, o); err != nil {
		return nil, web.Internal(err)
	}
	return o, nil
}
