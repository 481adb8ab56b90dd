// Package agent drives the eleven step assessment wizard: it merges form input,
// extracts ratings from the uploaded sheet, generates section texts and
// assembles the final document.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/document"
	"github.com/fmuoria/assessment-report-agent/internal/markup"
	"github.com/fmuoria/assessment-report-agent/internal/metrics"
	"github.com/fmuoria/assessment-report-agent/internal/models"
	"github.com/fmuoria/assessment-report-agent/internal/prompt"
	"github.com/fmuoria/assessment-report-agent/internal/scoring"
)

// Action is a wizard button
type Action string

const (
	ActionNext   Action = "next"
	ActionPrev   Action = "prev"
	ActionExport Action = "export"
	ActionSave   Action = "save"
)

var (
	// ErrUnknownAction is returned for actions other than next, prev, export and save
	ErrUnknownAction = errors.New("unknown wizard action")
	// ErrUnknownSection is returned when streaming a text key the catalog does not know
	ErrUnknownSection = errors.New("unknown section")
)

// ParseAction validates a submitted action. An empty action means next.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActionNext, nil
	case ActionNext, ActionPrev, ActionExport, ActionSave:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// ReportRepository persists report contexts
type ReportRepository interface {
	Create(ctx context.Context, owner string, rc *models.ReportContext) (uuid.UUID, error)
	Load(ctx context.Context, id uuid.UUID) (*models.ReportContext, error)
	Save(ctx context.Context, id uuid.UUID, rc *models.ReportContext) error
}

// TextGenerator produces section texts. Failures come back as fallback text.
type TextGenerator interface {
	Generate(ctx context.Context, name string, vars map[string]any) string
	Stream(ctx context.Context, name string, vars map[string]any, onDelta func(string)) string
}

// DocumentAssembler fills the report template
type DocumentAssembler interface {
	Assemble(ctx context.Context, in document.Input) ([]byte, error)
}

// CVExtractor turns an uploaded CV into text
type CVExtractor interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
}

// ImageStore publishes exported chart images
type ImageStore interface {
	SaveReportPNG(png []byte, reportID, name string) (string, error)
}

// Upload is a file submitted with a wizard step
type Upload struct {
	Filename string
	Data     []byte
}

// StepRequest is one wizard submission
type StepRequest struct {
	Action Action
	// ReportID is uuid.Nil for a new report
	ReportID uuid.UUID
	Owner    string
	Form     url.Values
	Sheet    *Upload
	CV       *Upload
}

// StepResult is the wizard state after a submission
type StepResult struct {
	ReportID  uuid.UUID
	Context   *models.ReportContext
	Document  []byte
	Filename  string
	ImageURLs map[string]string
}

// State returns the JSON view of the result
func (r *StepResult) State() models.StateResponse {
	return models.StateResponse{
		ReportID: r.ReportID.String(),
		Step:     r.Context.Step,
		Error:    r.Context.Error,
		Context:  r.Context,
		HTML:     r.Context.Sections,
		Images:   r.ImageURLs,
	}
}

// Dependencies are the collaborators of the agent. Extractor and Images may be nil.
type Dependencies struct {
	Catalog   *catalog.Catalog
	Reports   ReportRepository
	Generator TextGenerator
	Assembler DocumentAssembler
	Extractor CVExtractor
	Images    ImageStore
}

// ReportAgent runs the wizard state machine
type ReportAgent struct {
	catalog   *catalog.Catalog
	reports   ReportRepository
	generator TextGenerator
	assembler DocumentAssembler
	extractor CVExtractor
	images    ImageStore
	sheets    *scoring.Extractor
	merger    *scoring.BlockMerger
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportAgent creates a new wizard agent
func NewReportAgent(deps Dependencies, logger *zap.Logger) *ReportAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportAgent{
		catalog:   deps.Catalog,
		reports:   deps.Reports,
		generator: deps.Generator,
		assembler: deps.Assembler,
		extractor: deps.Extractor,
		images:    deps.Images,
		sheets:    scoring.NewExtractor(deps.Catalog, logger),
		merger:    scoring.NewBlockMerger(deps.Catalog, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Step applies one wizard action and persists the result. Only a missing
// report and storage failures are returned as errors; validation problems
// end up in the context's Error field.
func (a *ReportAgent) Step(ctx context.Context, req StepRequest) (*StepResult, error) {
	if req.Action == "" {
		req.Action = ActionNext
	}

	rc, err := a.load(ctx, req.ReportID)
	if err != nil {
		return nil, err
	}
	rc.Error = ""
	rc.DebugTrail = nil

	rc.DebugTrail = append(rc.DebugTrail, MergeForm(rc, req.Form, a.catalog)...)
	a.ingest(ctx, rc, req)

	res := &StepResult{Context: rc}

	switch req.Action {
	case ActionNext:
		a.next(ctx, rc)
	case ActionPrev:
		if rc.Step > models.FirstStep {
			rc.Step--
		}
	case ActionExport:
		if err := a.export(ctx, rc, req.ReportID, res); err != nil {
			return nil, err
		}
	case ActionSave:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	id, err := a.persist(ctx, req.ReportID, req.Owner, rc)
	if err != nil {
		return nil, err
	}
	res.ReportID = id

	metrics.WizardTransitions.WithLabelValues(string(req.Action), strconv.Itoa(rc.Step)).Inc()
	a.logger.Info("wizard step",
		zap.String("report_id", id.String()),
		zap.String("action", string(req.Action)),
		zap.Int("step", rc.Step),
		zap.Bool("validation_error", rc.Error != ""),
	)
	for _, note := range rc.DebugTrail {
		a.logger.Debug("wizard note", zap.String("report_id", id.String()), zap.String("note", note))
	}

	return res, nil
}

func (a *ReportAgent) load(ctx context.Context, id uuid.UUID) (*models.ReportContext, error) {
	if id == uuid.Nil {
		return models.NewReportContext(a.catalog), nil
	}
	return a.reports.Load(ctx, id)
}

func (a *ReportAgent) persist(ctx context.Context, id uuid.UUID, owner string, rc *models.ReportContext) (uuid.UUID, error) {
	if id == uuid.Nil {
		return a.reports.Create(ctx, owner, rc)
	}
	if err := a.reports.Save(ctx, id, rc); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ingest reads the uploaded sheet and CV into the context
func (a *ReportAgent) ingest(ctx context.Context, rc *models.ReportContext, req StepRequest) {
	if req.Sheet != nil && len(req.Sheet.Data) > 0 {
		if rc.Step != models.FirstStep {
			rc.DebugTrail = append(rc.DebugTrail, "Excel-fil ignorerad utanför steg 1")
		} else {
			a.ingestSheet(rc, req.Sheet)
		}
	}

	if req.CV != nil && len(req.CV.Data) > 0 {
		if a.extractor == nil {
			rc.DebugTrail = append(rc.DebugTrail, "CV-fil ignorerad, textutvinning saknas")
			return
		}
		text, err := a.extractor.ExtractText(ctx, req.CV.Filename, req.CV.Data)
		if err != nil {
			rc.DebugTrail = append(rc.DebugTrail, fmt.Sprintf("kunde inte läsa CV %s: %v", req.CV.Filename, err))
			return
		}
		rc.CVText = text
	}
}

func (a *ReportAgent) ingestSheet(rc *models.ReportContext, sheet *Upload) {
	src, err := scoring.NewExcelSource(bytes.NewReader(sheet.Data), "")
	if err != nil {
		rc.Ratings = models.NewRatingSet(a.catalog)
		rc.ExcelText = ""
		rc.DebugTrail = append(rc.DebugTrail, fmt.Sprintf("kunde inte läsa Excel-filen %s: %v", sheet.Filename, err))
		return
	}

	ratings, trail := a.sheets.Extract(src)
	rc.Ratings = ratings
	rc.DebugTrail = append(rc.DebugTrail, trail...)

	text, err := scoring.DumpText(src)
	if err != nil {
		rc.DebugTrail = append(rc.DebugTrail, fmt.Sprintf("kunde inte läsa Excel-filen %s: %v", sheet.Filename, err))
	}
	rc.ExcelText = text
}

// validate checks the inputs required to leave step 1
func validate(rc *models.ReportContext) string {
	var missing []string
	if rc.CandidateName == "" {
		missing = append(missing, "kandidatens namn")
	}
	if rc.ExcelText == "" {
		missing = append(missing, "Excel-fil med testresultat")
	}
	if rc.InterviewText == "" {
		missing = append(missing, "intervjuanteckningar")
	}
	if len(missing) == 0 {
		return ""
	}
	return "Följande uppgifter saknas: " + strings.Join(missing, ", ") + "."
}

func (a *ReportAgent) next(ctx context.Context, rc *models.ReportContext) {
	if rc.Step == models.FirstStep {
		if msg := validate(rc); msg != "" {
			rc.Error = msg
			return
		}
	}
	if rc.Step >= models.LastStep {
		rc.Step = models.LastStep
		return
	}

	rc.Step++
	if text, ok := a.catalog.TextForStep(rc.Step); ok && needsText(rc.Section(text.Key)) {
		a.generate(ctx, rc, text)
	}
}

// needsText reports whether a section is empty or only holds the fallback text
func needsText(current string) bool {
	plain := markup.ToPlainText(current)
	return plain == "" || plain == prompt.FallbackText
}

// keepExisting reports whether a failed regeneration should leave the current text alone
func keepExisting(current, out string) bool {
	out = strings.TrimSpace(out)
	if out != "" && out != prompt.FallbackText {
		return false
	}
	return !needsText(current)
}

// generate fills one section, merging a trailing ratings block into the
// section's ratings
func (a *ReportAgent) generate(ctx context.Context, rc *models.ReportContext, text catalog.TextSection) {
	out := a.generator.Generate(ctx, text.Key, PromptVars(rc, text, a.catalog))
	a.storeText(rc, text, out)
}

func (a *ReportAgent) storeText(rc *models.ReportContext, text catalog.TextSection, out string) {
	if text.Section != "" {
		if block := scoring.ExtractRatingsJSON(out); block != nil {
			rc.Ratings = a.merger.Merge(block, rc.Ratings, text.Section)
		} else {
			rc.DebugTrail = append(rc.DebugTrail, fmt.Sprintf("%s: inget RATINGS_JSON-block, betygen behålls", text.Key))
		}
		out = scoring.SplitNarrative(out)
	}
	rc.SetSection(text.Key, markup.ToHTML(out))
}

// StreamSection regenerates one section, forwarding text deltas as they arrive
func (a *ReportAgent) StreamSection(ctx context.Context, id uuid.UUID, key string, onDelta func(string)) (*models.ReportContext, error) {
	text, ok := a.catalog.Text(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, key)
	}

	rc, err := a.reports.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	out := a.generator.Stream(ctx, text.Key, PromptVars(rc, text, a.catalog), onDelta)
	if keepExisting(rc.Section(text.Key), out) {
		rc.DebugTrail = append(rc.DebugTrail, fmt.Sprintf("%s: generering misslyckades, tidigare text behålls", text.Key))
		a.logger.Warn("section regeneration failed, keeping previous text", zap.String("report_id", id.String()), zap.String("section", key))
		return rc, nil
	}
	a.storeText(rc, text, out)

	if err := a.reports.Save(ctx, id, rc); err != nil {
		return nil, err
	}
	a.logger.Info("section regenerated", zap.String("report_id", id.String()), zap.String("section", key))
	return rc, nil
}

// Document assembles the document of a stored report
func (a *ReportAgent) Document(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	rc, err := a.reports.Load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	res := &StepResult{Context: rc}
	if err := a.assemble(ctx, rc, id, res); err != nil {
		return nil, "", err
	}
	return res.Document, res.Filename, nil
}

func (a *ReportAgent) export(ctx context.Context, rc *models.ReportContext, id uuid.UUID, res *StepResult) error {
	if rc.Step < models.LastStep-1 {
		rc.Error = fmt.Sprintf("Dokumentet kan skapas först i steg %d.", models.LastStep-1)
		return nil
	}
	return a.assemble(ctx, rc, id, res)
}

func (a *ReportAgent) assemble(ctx context.Context, rc *models.ReportContext, id uuid.UUID, res *StepResult) error {
	images, err := document.Images(rc, a.catalog)
	if err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}

	if a.images != nil && id != uuid.Nil {
		res.ImageURLs = make(map[string]string, len(images))
		for token, png := range images {
			url, err := a.images.SaveReportPNG(png, id.String(), token)
			if err != nil {
				a.logger.Warn("failed to publish chart", zap.String("image", token), zap.Error(err))
				continue
			}
			res.ImageURLs[token] = url
		}
	}

	doc, err := a.assembler.Assemble(ctx, document.Input{
		Fields:  document.Fields(rc, a.catalog, a.now()),
		Ratings: rc.Ratings.Complete(a.catalog),
		Images:  images,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble document: %w", err)
	}

	res.Document = doc
	res.Filename = document.Filename(rc.CandidateName)
	return nil
}
