// Package pipeline wires the full document flow: normalize, classify,
// consensus-extract, sanitize, validate, then reconcile the STP and MFR
// evidence into a regulatory verdict. Individual stages are forgiving
// (bad data degrades to warnings or inconclusive verdicts); only a
// cancelled context or missing oracle surfaces as an error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pharmadoc/internal/classify"
	"pharmadoc/internal/doctree"
	"pharmadoc/internal/extract"
	"pharmadoc/internal/logging"
	"pharmadoc/internal/oracle"
	"pharmadoc/internal/regulatory"
	"pharmadoc/internal/sanitize"
	"pharmadoc/internal/validate"
)

// ErrNoClient is returned when the pipeline is built without an oracle client.
var ErrNoClient = errors.New("pipeline: no oracle client configured")

// Document is one input to the pipeline: raw page text plus any page images
// the caller rasterized for the oracle.
type Document struct {
	Name   string
	Text   string
	Images []oracle.Image
}

// Meta carries the operator-supplied product context into the extraction
// instructions.
type Meta struct {
	ProductName string
	DosageForm  string
	ProductCode string
}

// DocumentResult is the structured outcome for a single analyzed document.
type DocumentResult struct {
	Name              string           `json:"name"`
	DocType           classify.DocType `json:"document_type"`
	Record            *doctree.Mapping `json:"extracted_data"`
	MasterDefinition  *doctree.Mapping `json:"-"`
	ExecutionEvidence *doctree.Mapping `json:"-"`
	Validation        validate.Report  `json:"validation"`
}

// Verdict is the assembled output of a paired STP/MFR analysis.
type Verdict struct {
	ProtocolID   string              `json:"protocol_id"`
	ReportID     string              `json:"report_id"`
	GeneratedAt  time.Time           `json:"generated_at"`
	ProductName  string              `json:"product_name"`
	DosageForm   string              `json:"dosage_form"`
	STP          *DocumentResult     `json:"stp"`
	MFR          *DocumentResult     `json:"mfr"`
	CrossRefs    []string            `json:"cross_reference_errors"`
	Batches      []regulatory.Batch  `json:"batches"`
	Decision     regulatory.Decision `json:"decision"`
	SanityIssues []string            `json:"sanity_issues"`
}

// Pipeline holds the shared collaborators for document analysis. The oracle
// client and extractor (with its cache) are reused across documents.
type Pipeline struct {
	client    oracle.Client
	extractor *extract.Extractor
}

// New builds a Pipeline around a client and a configured extractor.
func New(client oracle.Client, extractor *extract.Extractor) *Pipeline {
	return &Pipeline{client: client, extractor: extractor}
}

// AnalyzeDocument runs one document through normalize, classify, extract,
// sanitize and validate. The returned result always carries a non-nil record;
// an empty one means extraction produced nothing usable.
func (p *Pipeline) AnalyzeDocument(ctx context.Context, meta Meta, doc Document) (*DocumentResult, error) {
	if p.client == nil || p.extractor == nil {
		return nil, ErrNoClient
	}

	text := sanitize.NormalizeText(doc.Text)
	docType := classify.Classify(ctx, p.client, text)
	logging.Pipeline("document %q classified as %s (%d chars)", doc.Name, docType, len(text))

	ec := extract.Context{
		ProductName: meta.ProductName,
		DosageForm:  meta.DosageForm,
		ProductCode: meta.ProductCode,
	}
	instruction := extract.STPInstruction(ec)
	if docType == classify.MFR {
		instruction = extract.MFRInstruction(ec)
	}

	record := p.extractor.Extract(ctx, extract.Input{
		DocType:     string(docType),
		Instruction: instruction,
		Document:    text,
		Images:      doc.Images,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if docType == classify.MFR {
		sanitize.ApplyMFR(record)
	} else {
		sanitize.ApplySTP(record)
	}

	result := &DocumentResult{
		Name:       doc.Name,
		DocType:    docType,
		Record:     record,
		Validation: validate.Extraction(record, docType),
	}
	result.MasterDefinition = masterOf(record)
	result.ExecutionEvidence = record.GetMapping("execution_evidence")
	logging.PipelineDebug("document %q: %d master keys, validation errors=%d warnings=%d",
		doc.Name, result.MasterDefinition.Len(),
		len(result.Validation.Errors), len(result.Validation.Warnings))
	return result, nil
}

// AnalyzePair analyzes the STP and MFR concurrently, then cross-references
// the records, assembles batch evidence and renders the compliance decision.
func (p *Pipeline) AnalyzePair(ctx context.Context, meta Meta, stp, mfr Document) (*Verdict, error) {
	var stpResult, mfrResult *DocumentResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() error {
		r, err := p.AnalyzeDocument(gctx, meta, stp)
		stpResult = r
		return err
	})
	g.Go(func() error {
		r, err := p.AnalyzeDocument(gctx, meta, mfr)
		mfrResult = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if stpResult.DocType != classify.STP {
		logging.PipelineWarn("document %q supplied as STP but classified as %s", stp.Name, stpResult.DocType)
	}
	if mfrResult.DocType != classify.MFR {
		logging.PipelineWarn("document %q supplied as MFR but classified as %s", mfr.Name, mfrResult.DocType)
	}

	stpMaster := stpResult.MasterDefinition
	mfrMaster := mfrResult.MasterDefinition

	crossRefs := regulatory.CrossReference(stpMaster, mfrMaster)
	for _, msg := range crossRefs {
		logging.PipelineWarn("cross-reference: %s", msg)
	}

	batches := regulatory.AssembleBatches(mfrResult.ExecutionEvidence, stpResult.ExecutionEvidence, stpMaster)
	decision := regulatory.Evaluate(batches)
	sanity := regulatory.SanityCheck(decision.ConclusionStatement, batches)
	for _, issue := range sanity {
		logging.PipelineError("sanity check: %s", issue)
	}

	code := productCode(mfrMaster, stpMaster, meta.ProductCode)
	ids := generateIDs(code)
	logging.Pipeline("verdict %s for %q: %s", ids.report, meta.ProductName, decision.ComplianceLevel)

	return &Verdict{
		ProtocolID:   ids.protocol,
		ReportID:     ids.report,
		GeneratedAt:  time.Now(),
		ProductName:  meta.ProductName,
		DosageForm:   meta.DosageForm,
		STP:          stpResult,
		MFR:          mfrResult,
		CrossRefs:    crossRefs,
		Batches:      batches,
		Decision:     decision,
		SanityIssues: sanity,
	}, nil
}

// productCode picks the first usable product code, preferring the MFR record,
// then the STP record, then the operator-supplied value.
func productCode(mfrMaster, stpMaster *doctree.Mapping, supplied string) string {
	candidates := []string{
		mfrMaster.GetString("product_code"),
		stpMaster.GetString("product_code"),
		supplied,
	}
	for _, code := range candidates {
		code = strings.TrimSpace(code)
		if len(code) > 1 && !strings.Contains(code, "----") && !strings.Contains(code, "N/A") {
			return code
		}
	}
	return "TEMP-001"
}

type idPair struct {
	protocol string
	report   string
}

// generateIDs derives protocol and report identifiers from the product code,
// a timestamp and a short random suffix so repeated runs never collide.
func generateIDs(code string) idPair {
	safe := strings.ReplaceAll(code, "/", "-")
	safe = strings.ReplaceAll(safe, " ", "")
	if len(safe) > 20 {
		safe = safe[:20]
	}
	stamp := time.Now().Format("200601021504")
	suffix := uuid.New().String()[:8]
	return idPair{
		protocol: fmt.Sprintf("PVP-%s-%s-%s", safe, stamp, suffix),
		report:   fmt.Sprintf("PVR-%s-%s-%s", safe, stamp, suffix),
	}
}

func masterOf(record *doctree.Mapping) *doctree.Mapping {
	if m := record.GetMapping("master_definition"); m != nil {
		return m
	}
	return record
}
