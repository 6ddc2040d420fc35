package variation

import (
	"fmt"
)

// Engine bundles the pure detection stages over one vocabulary and scoring
// configuration. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	vocab      *Vocabulary
	extractor  *AttributeExtractor
	normalizer *TitleNormalizer
	clusterer  *FamilyClusterer
	detector   *ThemeDetector
	scorer     *ConfidenceScorer
}

// NewEngine constructs the detection pipeline.
func NewEngine(vocab *Vocabulary, cfg AnalysisConfig) (*Engine, error) {
	if vocab == nil {
		return nil, NewConfigurationError("vocabulary", "is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	normalizer := NewTitleNormalizer(vocab)
	return &Engine{
		vocab:      vocab,
		extractor:  NewAttributeExtractor(vocab),
		normalizer: normalizer,
		clusterer:  NewFamilyClusterer(normalizer),
		detector:   NewThemeDetector(vocab),
		scorer:     NewConfidenceScorer(cfg),
	}, nil
}

// Vocabulary returns the engine's vocabulary
func (e *Engine) Vocabulary() *Vocabulary { return e.vocab }

// Extractor returns the attribute extractor
func (e *Engine) Extractor() *AttributeExtractor { return e.extractor }

// Normalizer returns the title normalizer
func (e *Engine) Normalizer() *TitleNormalizer { return e.normalizer }

// Cluster groups records into candidate families
func (e *Engine) Cluster(records []ProductRecord) []CandidateFamily {
	return e.clusterer.Cluster(records)
}

// Analyze runs theme detection and scoring for one candidate. hints, keyed by
// SKU, annotate members already attached to a parent elsewhere.
func (e *Engine) Analyze(family CandidateFamily, hints map[string][]RelationshipHint) FamilyAnalysis {
	analysis := e.scorer.Score(family, e.detector.Detect(family))
	for _, sku := range analysis.MemberSKUs {
		for _, h := range hints[sku] {
			if h.HasParent() {
				analysis.Notes = append(analysis.Notes,
					fmt.Sprintf("%s already belongs to parent %s", sku, h.ParentASINs[0]))
				break
			}
		}
	}
	return analysis
}

// AnalyzeAll clusters records and analyzes every candidate sequentially,
// returning only families with variations.
func (e *Engine) AnalyzeAll(records []ProductRecord) []FamilyAnalysis {
	var out []FamilyAnalysis
	for _, f := range e.Cluster(records) {
		if a := e.Analyze(f, nil); a.HasVariations {
			out = append(out, a)
		}
	}
	return out
}
