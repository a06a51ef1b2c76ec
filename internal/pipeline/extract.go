package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/tradedocs/internal/model"
)

// fieldPattern is one named capture with its ordered candidate
// regexes; the first match wins.
type fieldPattern struct {
	name     string
	patterns []*regexp.Regexp
}

// Extraction patterns per document type. Each regex captures the field
// value in group 1.
var fieldPatterns = map[model.DocumentType][]fieldPattern{
	model.DocTypeCommercialInvoice: {
		{"invoice_number", compileAll(
			`invoice\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
			`inv[\s#]*([A-Z0-9\-/]+)`,
		)},
		{"invoice_date", compileAll(
			`(?:invoice\s*)?date[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
			`dated[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		)},
		{"total_amount", compileAll(
			`grand\s*total[\s:]*(?:USD|EUR|GBP)?\s*\$?([0-9,]+\.?\d*)`,
			`total[\s:]*(?:USD|EUR|GBP)?\s*\$?([0-9,]+\.?\d*)`,
			`amount[\s:]*(?:USD|EUR|GBP)?\s*\$?([0-9,]+\.?\d*)`,
		)},
		{"currency", compileAll(
			`currency[\s:]*([A-Z]{3})`,
			`amount\s*in\s*([A-Z]{3})`,
		)},
		{"seller_name", compileAll(
			`(?:seller|vendor|supplier)[\s:]*([A-Za-z][A-Za-z &.,]+)`,
			`bill\s*from[\s:]*([A-Za-z][A-Za-z &.,]+)`,
		)},
		{"buyer_name", compileAll(
			`(?:buyer|customer)[\s:]*([A-Za-z][A-Za-z &.,]+)`,
			`bill\s*to[\s:]*([A-Za-z][A-Za-z &.,]+)`,
		)},
		{"description_of_goods", compileAll(
			`description\s*of\s*goods[\s:]*([^\n]+)`,
			`goods\s*description[\s:]*([^\n]+)`,
		)},
	},
	model.DocTypeLetterOfCredit: {
		{"lc_number", compileAll(
			`(?:lc|letter\s*of\s*credit|documentary\s*credit)\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
		)},
		{"lc_amount", compileAll(
			`(?:lc|credit)\s*amount[\s:]*(?:USD|EUR|GBP)?\s*\$?([0-9,]+\.?\d*)`,
			`value[\s:]*(?:USD|EUR|GBP)?\s*\$?([0-9,]+\.?\d*)`,
		)},
		{"expiry_date", compileAll(
			`expiry\s*date[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
			`valid\s*until[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
			`expires[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		)},
		{"issuing_bank", compileAll(
			`issuing\s*bank[\s:]*([A-Za-z][A-Za-z &.,]+)`,
			`issued\s*by[\s:]*([A-Za-z][A-Za-z &.,]+)`,
		)},
		{"beneficiary", compileAll(
			`beneficiary[\s:]*([A-Za-z][A-Za-z &.,]+)`,
			`in\s*favor\s*of[\s:]*([A-Za-z][A-Za-z &.,]+)`,
		)},
		{"applicant", compileAll(
			`applicant[\s:]*([A-Za-z][A-Za-z &.,]+)`,
			`for\s*account\s*of[\s:]*([A-Za-z][A-Za-z &.,]+)`,
		)},
		{"description_of_goods", compileAll(
			`description\s*of\s*goods[\s:]*([^\n]+)`,
			`covering[\s:]*([^\n]+)`,
		)},
	},
	model.DocTypeBillOfLading: {
		{"bl_number", compileAll(
			`b/l\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
			`bill\s*of\s*lading\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
		)},
		{"vessel_name", compileAll(
			`vessel[\s:]*([A-Za-z][A-Za-z \-]+)`,
			`m\.v\.?\s*([A-Za-z][A-Za-z \-]+)`,
		)},
		{"port_of_loading", compileAll(
			`port\s*of\s*loading[\s:]*([A-Za-z][A-Za-z ,]+)`,
			`departure\s*port[\s:]*([A-Za-z][A-Za-z ,]+)`,
		)},
		{"port_of_discharge", compileAll(
			`port\s*of\s*discharge[\s:]*([A-Za-z][A-Za-z ,]+)`,
			`destination\s*port[\s:]*([A-Za-z][A-Za-z ,]+)`,
		)},
		{"shipment_date", compileAll(
			`(?:shipment|sailing|shipped\s*on\s*board)\s*date[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
			`etd[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		)},
		{"consignee", compileAll(
			`consignee[\s:]*([A-Za-z][A-Za-z &.,]+)`,
			`notify\s*party[\s:]*([A-Za-z][A-Za-z &.,]+)`,
		)},
	},
	model.DocTypeCertificateOfOrigin: {
		{"certificate_number", compileAll(
			`certificate\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
			`coo\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
		)},
		{"country_of_origin", compileAll(
			`country\s*of\s*origin[\s:]*([A-Za-z][A-Za-z ]+)`,
			`made\s*in[\s:]*([A-Za-z][A-Za-z ]+)`,
		)},
		{"exporter", compileAll(
			`exporter[\s:]*([A-Za-z][A-Za-z &.,]+)`,
		)},
		{"issue_date", compileAll(
			`(?:issue\s*date|date\s*of\s*issue)[\s:]*(\d{4}-\d{2}-\d{2}|\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`,
		)},
	},
	model.DocTypePackingList: {
		{"packing_list_number", compileAll(
			`(?:packing\s*list|pl)\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
		)},
		{"total_packages", compileAll(
			`(?:total|no\.\s*of)\s*packages[\s:]*(\d+)`,
			`packages[\s:]*(\d+)`,
		)},
		{"gross_weight", compileAll(
			`gross\s*weight[\s:]*([0-9,]+\.?\d*)`,
			`total\s*weight[\s:]*([0-9,]+\.?\d*)`,
		)},
		{"net_weight", compileAll(
			`net\s*weight[\s:]*([0-9,]+\.?\d*)`,
			`n\.w\.[\s:]*([0-9,]+\.?\d*)`,
		)},
	},
	model.DocTypeInsuranceCertificate: {
		{"policy_number", compileAll(
			`policy\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
		)},
		{"insured_amount", compileAll(
			`insured\s*amount[\s:]*(?:USD|EUR|GBP)?\s*\$?([0-9,]+\.?\d*)`,
		)},
		{"coverage", compileAll(
			`coverage[\s:]*([^\n]+)`,
		)},
	},
	model.DocTypeMultimodalTransport: {
		{"mtd_number", compileAll(
			`mtd\s*(?:no|number|#)[\s:]*([A-Z0-9\-/]+)`,
		)},
		{"place_of_receipt", compileAll(
			`place\s*of\s*receipt[\s:]*([A-Za-z][A-Za-z ,]+)`,
		)},
		{"place_of_delivery", compileAll(
			`place\s*of\s*delivery[\s:]*([A-Za-z][A-Za-z ,]+)`,
			`final\s*destination[\s:]*([A-Za-z][A-Za-z ,]+)`,
		)},
	},
}

// ExtractFields runs the document type's pattern table over the text
// and returns one row per matched field, ordered by the pattern table.
// The generic type has no patterns and yields nothing.
func ExtractFields(docType model.DocumentType, text string) []model.FieldExtraction {
	var out []model.FieldExtraction
	for _, fp := range fieldPatterns[docType] {
		for _, p := range fp.patterns {
			m := p.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			value := strings.TrimSpace(m[1])
			if value == "" {
				continue
			}
			out = append(out, model.FieldExtraction{
				FieldName:        fp.name,
				FieldValue:       value,
				Confidence:       patternConfidence(fp.name, value),
				ExtractionMethod: model.ExtractionMethodPattern,
			})
			break
		}
	}
	return out
}

// patternConfidence scores an extracted value: base 0.7 with bonuses
// for field kinds that have tight formats and penalties for noise-prone
// short captures.
func patternConfidence(name, value string) float64 {
	conf := 0.7
	if strings.HasSuffix(name, "_number") {
		conf += 0.1
	}
	if strings.HasSuffix(name, "_date") {
		conf += 0.1
	}
	if strings.HasSuffix(name, "_amount") {
		conf += 0.1
	}
	if len(value) < 3 {
		conf -= 0.2
	} else if len(value) > 10 {
		conf += 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
