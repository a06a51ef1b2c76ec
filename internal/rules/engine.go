// Package rules implements the UCP 600 discrepancy checks run over a
// completed document set. The engine is a pure function of the set
// snapshot: identical snapshots always produce identical findings.
package rules

import (
	"fmt"
	"sort"

	"github.com/sells-group/tradedocs/internal/config"
	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/registry"
	"github.com/sells-group/tradedocs/internal/resilience"
)

// Engine evaluates a document set snapshot against the rule table.
type Engine struct {
	reg                 *registry.Registry
	amountTolerance     float64
	similarityThreshold float64
}

// NewEngine creates an engine with the registry's UCP references and
// the configured thresholds.
func NewEngine(reg *registry.Registry, cfg config.RulesConfig) *Engine {
	if reg == nil {
		reg = registry.Default()
	}
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	return &Engine{
		reg:                 reg,
		amountTolerance:     cfg.AmountTolerance,
		similarityThreshold: threshold,
	}
}

// Evaluate runs every rule over the snapshot and returns the findings
// in a deterministic order, plus any RuleEvaluationErrors for rules
// skipped over malformed field data. A skipped rule never produces a
// guessed discrepancy and never blocks the other rules.
func (e *Engine) Evaluate(snap *model.SetSnapshot) ([]model.Discrepancy, []error) {
	var (
		discs []model.Discrepancy
		errs  []error
	)

	discs = append(discs, e.checkMissingDocuments(snap)...)

	if d, err := e.checkAmounts(snap); err != nil {
		errs = append(errs, err)
	} else if d != nil {
		discs = append(discs, *d)
	}

	if d, err := e.checkDates(snap); err != nil {
		errs = append(errs, err)
	} else if d != nil {
		discs = append(discs, *d)
	}

	if d := e.checkDescriptions(snap); d != nil {
		discs = append(discs, *d)
	}

	sort.Slice(discs, func(i, j int) bool {
		if discs[i].DiscrepancyType != discs[j].DiscrepancyType {
			return discs[i].DiscrepancyType < discs[j].DiscrepancyType
		}
		if discs[i].FieldName != discs[j].FieldName {
			return discs[i].FieldName < discs[j].FieldName
		}
		return discs[i].ExpectedValue < discs[j].ExpectedValue
	})
	return discs, errs
}

// checkMissingDocuments flags every expected type with no completed
// member. UCP 600 Art. 14(a): banks examine the documents actually
// presented.
func (e *Engine) checkMissingDocuments(snap *model.SetSnapshot) []model.Discrepancy {
	var out []model.Discrepancy
	for _, docType := range snap.Set.ExpectedDocumentTypes {
		if snap.HasType(docType) {
			continue
		}
		out = append(out, model.Discrepancy{
			DiscrepancyType:  model.DiscrepancyDocumentMissing,
			Severity:         model.SeverityHigh,
			Description:      fmt.Sprintf("required document %q was not presented", docType),
			FieldName:        "document",
			ExpectedValue:    string(docType),
			ActualValue:      model.NotProvided,
			UCPRuleReference: e.reg.UCPReference(model.DiscrepancyDocumentMissing),
		})
	}
	return out
}

// checkAmounts compares the invoice total against the credit amount.
// UCP 600 Art. 18(b): the invoice amount may not exceed the credit.
func (e *Engine) checkAmounts(snap *model.SetSnapshot) (*model.Discrepancy, error) {
	invoiceField := snap.Field(model.DocTypeCommercialInvoice, "total_amount")
	creditField := snap.Field(model.DocTypeLetterOfCredit, "lc_amount")
	if invoiceField == nil || creditField == nil {
		return nil, nil
	}

	invoiceAmount, err := ParseAmount(invoiceField.FieldValue)
	if err != nil {
		return nil, &resilience.RuleEvaluationError{Rule: model.DiscrepancyAmountMismatch, Field: "total_amount", Err: err}
	}
	creditAmount, err := ParseAmount(creditField.FieldValue)
	if err != nil {
		return nil, &resilience.RuleEvaluationError{Rule: model.DiscrepancyAmountMismatch, Field: "lc_amount", Err: err}
	}

	diff := invoiceAmount - creditAmount
	if diff < 0 {
		diff = -diff
	}
	if diff <= e.amountTolerance {
		return nil, nil
	}
	return &model.Discrepancy{
		DiscrepancyType:  model.DiscrepancyAmountMismatch,
		Severity:         model.SeverityHigh,
		Description:      fmt.Sprintf("invoice amount (%s) does not match credit amount (%s)", invoiceField.FieldValue, creditField.FieldValue),
		FieldName:        "total_amount",
		ExpectedValue:    creditField.FieldValue,
		ActualValue:      invoiceField.FieldValue,
		UCPRuleReference: e.reg.UCPReference(model.DiscrepancyAmountMismatch),
	}, nil
}

// checkDates flags shipment after credit expiry. UCP 600 Art. 14(c):
// presentation must fall within the credit's validity.
func (e *Engine) checkDates(snap *model.SetSnapshot) (*model.Discrepancy, error) {
	shipmentField := snap.Field(model.DocTypeBillOfLading, "shipment_date")
	expiryField := snap.Field(model.DocTypeLetterOfCredit, "expiry_date")
	if shipmentField == nil || expiryField == nil {
		return nil, nil
	}

	shipment, err := ParseDate(shipmentField.FieldValue)
	if err != nil {
		return nil, &resilience.RuleEvaluationError{Rule: model.DiscrepancyDateDiscrepancy, Field: "shipment_date", Err: err}
	}
	expiry, err := ParseDate(expiryField.FieldValue)
	if err != nil {
		return nil, &resilience.RuleEvaluationError{Rule: model.DiscrepancyDateDiscrepancy, Field: "expiry_date", Err: err}
	}

	if !shipment.After(expiry) {
		return nil, nil
	}
	return &model.Discrepancy{
		DiscrepancyType:  model.DiscrepancyDateDiscrepancy,
		Severity:         model.SeverityMedium,
		Description:      fmt.Sprintf("shipment date (%s) is after credit expiry (%s)", shipmentField.FieldValue, expiryField.FieldValue),
		FieldName:        "shipment_date",
		ExpectedValue:    expiryField.FieldValue,
		ActualValue:      shipmentField.FieldValue,
		UCPRuleReference: e.reg.UCPReference(model.DiscrepancyDateDiscrepancy),
	}, nil
}

// checkDescriptions compares goods descriptions across invoice and
// credit. UCP 600 Art. 14(e): descriptions may be general but must not
// conflict.
func (e *Engine) checkDescriptions(snap *model.SetSnapshot) *model.Discrepancy {
	invoiceField := snap.Field(model.DocTypeCommercialInvoice, "description_of_goods")
	creditField := snap.Field(model.DocTypeLetterOfCredit, "description_of_goods")
	if invoiceField == nil || creditField == nil {
		return nil
	}

	if Similarity(invoiceField.FieldValue, creditField.FieldValue) >= e.similarityThreshold {
		return nil
	}
	return &model.Discrepancy{
		DiscrepancyType:  model.DiscrepancyDescriptionMismatch,
		Severity:         model.SeverityLow,
		Description:      "goods description on the invoice conflicts with the credit",
		FieldName:        "description_of_goods",
		ExpectedValue:    creditField.FieldValue,
		ActualValue:      invoiceField.FieldValue,
		UCPRuleReference: e.reg.UCPReference(model.DiscrepancyDescriptionMismatch),
	}
}
