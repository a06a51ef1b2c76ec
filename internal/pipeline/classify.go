package pipeline

import (
	"regexp"

	"github.com/sells-group/tradedocs/internal/model"
)

// Keyword patterns per document type. Confidence is the fraction of a
// type's patterns found in the text; the best-scoring type wins and
// anything unmatched falls back to the generic trade document.
var classifyPatterns = map[model.DocumentType][]*regexp.Regexp{
	model.DocTypeCommercialInvoice: compileAll(
		`commercial\s+invoice`,
		`invoice\s+(?:no|number)`,
		`total\s+amount`,
		`invoice\s+date`,
		`seller[:\s]`,
		`buyer[:\s]`,
		`description\s+of\s+goods`,
	),
	model.DocTypeLetterOfCredit: compileAll(
		`letter\s+of\s+credit`,
		`documentary\s+credit`,
		`(?:lc|credit)\s+no`,
		`irrevocable`,
		`beneficiary`,
		`applicant`,
		`issuing\s+bank`,
		`advising\s+bank`,
	),
	model.DocTypeBillOfLading: compileAll(
		`bill\s+of\s+lading`,
		`b/l\s+(?:no|number)`,
		`vessel\s+name`,
		`port\s+of\s+loading`,
		`port\s+of\s+discharge`,
		`shipper[:\s]`,
		`consignee[:\s]`,
	),
	model.DocTypeCertificateOfOrigin: compileAll(
		`certificate\s+of\s+origin`,
		`country\s+of\s+origin`,
		`chamber\s+of\s+commerce`,
		`goods\s+origin`,
		`exporter[:\s]`,
		`certified\s+that`,
	),
	model.DocTypePackingList: compileAll(
		`packing\s+list`,
		`package\s+list`,
		`gross\s+weight`,
		`net\s+weight`,
		`dimensions`,
		`packages?\s+\d+`,
	),
	model.DocTypeInsuranceCertificate: compileAll(
		`insurance\s+certificate`,
		`policy\s+(?:no|number)`,
		`insured\s+amount`,
		`coverage`,
		`underwriter`,
		`marine\s+insurance`,
	),
	model.DocTypeMultimodalTransport: compileAll(
		`multimodal\s+transport`,
		`mtd\s+(?:no|number)`,
		`place\s+of\s+receipt`,
		`place\s+of\s+delivery`,
		`combined\s+transport`,
		`final\s+destination`,
		`carrier\s+received`,
	),
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Classify scores the text against every known document type and
// returns the best match with its confidence. Text matching nothing
// classifies as the generic type with zero confidence; classification
// never fails.
func Classify(text string) (model.DocumentType, float64) {
	best := model.DocTypeGeneric
	bestScore := 0.0

	for _, docType := range model.KnownDocumentTypes {
		patterns := classifyPatterns[docType]
		matched := 0
		for _, p := range patterns {
			if p.MatchString(text) {
				matched++
			}
		}
		if len(patterns) == 0 {
			continue
		}
		score := float64(matched) / float64(len(patterns))
		if score > bestScore {
			bestScore = score
			best = docType
		}
	}

	return best, bestScore
}
