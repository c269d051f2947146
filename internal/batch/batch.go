// Package batch sequences one send operation: building DICOM
// instances for every source PDF, encoding them, and handing the whole
// batch to the STOW-RS client as a single upload.
package batch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Algernon72/PDF2PACS/internal/dicomgen"
	"github.com/Algernon72/PDF2PACS/internal/render"
	"github.com/Algernon72/PDF2PACS/internal/stow"
	"github.com/Algernon72/PDF2PACS/internal/uid"
)

// PatientFields are the raw form inputs describing the patient.
// Empty PatientID means "generate one"; BirthDate is free text and
// normalized during the send.
type PatientFields struct {
	FamilyName string `json:"familyName"`
	GivenName  string `json:"givenName"`
	BirthDate  string `json:"birthDate"`
	PatientID  string `json:"patientId"`
}

// SendOptions are the per-send toggles. MakePreview is the master
// switch for image generation; AllPages selects every page instead of
// just the first; SeriesPerPDF picks the per-PDF series policy over
// the shared-series one.
type SendOptions struct {
	MakePreview  bool `json:"makePreview"`
	AllPages     bool `json:"allPages"`
	SeriesPerPDF bool `json:"seriesPerPdf"`
}

// Request is the value object for one send. It is constructed fresh
// per invocation and nothing in it outlives the call.
type Request struct {
	Sources []string      `json:"sources"`
	Patient PatientFields `json:"patient"`
	Options SendOptions   `json:"options"`
}

// Report is the outcome handed back to the caller. Failures of any
// step arrive here as data; Send never panics or leaks errors past
// this boundary.
type Report struct {
	OK        bool     `json:"ok"`
	Message   string   `json:"message"`
	StudyUID  string   `json:"studyUid,omitempty"`
	PatientID string   `json:"patientId,omitempty"`
	Instances int      `json:"instances"`
	Log       []string `json:"log"`
}

// Defaults are the batch-wide descriptive fields sourced from
// configuration.
type Defaults struct {
	StudyDescription       string
	SeriesDescription      string
	ReferringPhysicianName string
	AccessionNumber        string
	PatientIDPrefix        string
}

// Uploader is the outbound boundary of the orchestrator, satisfied by
// *stow.Client and by test doubles.
type Uploader interface {
	Store(ctx context.Context, encoded [][]byte) stow.Result
}

// Orchestrator drives one send at a time. Open is the rendering
// capability; when nil, image generation silently degrades to
// document-only instances.
type Orchestrator struct {
	uploader Uploader
	defaults Defaults
	open     render.Opener
	logger   *slog.Logger
	encode   func(dicomgen.Instance) ([]byte, error)
}

// New wires an orchestrator. logger may be nil for the default.
func New(uploader Uploader, defaults Defaults, open render.Opener, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		uploader: uploader,
		defaults: defaults,
		open:     open,
		logger:   logger,
		encode:   dicomgen.Encode,
	}
}

// Send runs the whole pipeline for one request: validation, instance
// building, encoding, and exactly one upload call. Encoding problems
// abort before any network traffic; an empty source list fails
// immediately without touching the uploader.
func (o *Orchestrator) Send(ctx context.Context, req Request) Report {
	rep := Report{}
	step := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		rep.Log = append(rep.Log, msg)
		o.logger.InfoContext(ctx, msg)
	}

	if len(req.Sources) == 0 {
		rep.Message = "no source files: add at least one PDF"
		rep.Log = append(rep.Log, rep.Message)
		return rep
	}

	patient := o.resolvePatient(req.Patient)
	step("starting send")
	step("patient: %s (ID: %s)", patient.Name, patient.ID)
	step("files to process: %d", len(req.Sources))

	study := dicomgen.NewStudyContext(
		uid.New(),
		o.defaults.StudyDescription,
		o.defaults.ReferringPhysicianName,
		o.defaults.AccessionNumber,
	)
	rep.StudyUID = study.StudyUID
	rep.PatientID = patient.ID

	var instances []dicomgen.Instance
	sharedSeries := dicomgen.SeriesContext{
		SeriesUID:   uid.New(),
		Number:      1,
		Description: o.defaults.SeriesDescription,
	}
	if req.Options.SeriesPerPDF {
		step("mode: one series per PDF")
	} else {
		step("mode: all PDFs in one series")
	}

	for i, source := range req.Sources {
		series := sharedSeries
		if req.Options.SeriesPerPDF {
			series = dicomgen.SeriesContext{
				SeriesUID:   uid.New(),
				Number:      i + 1,
				Description: o.defaults.SeriesDescription,
			}
		}
		step("processing %s (series #%d)", filepath.Base(source), series.Number)

		built, err := o.buildForPDF(ctx, source, req.Options, patient, study, series)
		if err != nil {
			rep.Message = err.Error()
			rep.Log = append(rep.Log, rep.Message)
			o.logger.ErrorContext(ctx, "send aborted", "source", source, "error", err)
			return rep
		}
		step("created %d DICOM objects for series #%d", len(built), series.Number)
		instances = append(instances, built...)
	}
	rep.Instances = len(instances)

	encoded := make([][]byte, 0, len(instances))
	for _, inst := range instances {
		b, err := o.encode(inst)
		if err != nil {
			// Fatal for the whole batch: nothing is uploaded.
			rep.Message = fmt.Sprintf("encoding failed, nothing sent: %v", err)
			rep.Log = append(rep.Log, rep.Message)
			o.logger.ErrorContext(ctx, "encoding failed", "error", err)
			return rep
		}
		encoded = append(encoded, b)
	}

	step("uploading %d objects", len(encoded))
	res := o.uploader.Store(ctx, encoded)
	rep.OK = res.OK
	rep.Message = res.Message
	rep.Log = append(rep.Log, res.Message)
	return rep
}

// buildForPDF produces the instances for one source: the document
// first, then the optional page images. Rendering problems are not
// fatal; an unreadable source file is.
func (o *Orchestrator) buildForPDF(ctx context.Context, source string, opts SendOptions, patient dicomgen.PatientContext, study dicomgen.StudyContext, series dicomgen.SeriesContext) ([]dicomgen.Instance, error) {
	pdf, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	instances := []dicomgen.Instance{
		dicomgen.BuildEncapsulatedDocument(pdf, source, uid.New(), patient, study, series),
	}

	if !opts.MakePreview || o.open == nil {
		if opts.MakePreview {
			o.logger.InfoContext(ctx, "rendering unavailable, sending document only", "source", source)
		}
		return instances, nil
	}

	pages, err := o.renderPages(ctx, source, opts.AllPages)
	if err != nil {
		// Additive feature only: log and carry on with the document.
		o.logger.InfoContext(ctx, "page rendering skipped", "source", source, "error", err)
		return instances, nil
	}
	for i, page := range pages {
		instances = append(instances,
			dicomgen.BuildSecondaryCapture(page, 2+i, uid.New(), patient, study, series))
	}
	return instances, nil
}

func (o *Orchestrator) renderPages(ctx context.Context, source string, allPages bool) ([]*image.RGBA, error) {
	r, err := o.open(source)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if allPages {
		return render.RenderAll(ctx, r)
	}
	if r.PageCount() < 1 {
		return nil, nil
	}
	first, err := r.RenderPage(ctx, 0)
	if err != nil {
		return nil, err
	}
	return []*image.RGBA{first}, nil
}

func (o *Orchestrator) resolvePatient(fields PatientFields) dicomgen.PatientContext {
	id := fields.PatientID
	if id == "" {
		id = uid.NewPatientID(o.defaults.PatientIDPrefix)
	}
	raw := fields.FamilyName + " " + fields.GivenName
	return dicomgen.PatientContext{
		Name:      uid.ToPersonName(raw),
		ID:        id,
		BirthDate: uid.ParseBirthDate(fields.BirthDate),
	}
}
