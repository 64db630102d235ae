package reconcile

import (
	"github.com/shopspring/decimal"

	"monitor-pricewatch/models"
)

// Classifier maps a deviation percent to a compliance status
type Classifier struct {
	nonCompliantBelow decimal.Decimal
}

// NewClassifier creates a classifier whose Needs Attention band is [nonCompliantBelow, 0)
func NewClassifier(nonCompliantBelow float64) Classifier {
	return Classifier{nonCompliantBelow: decimal.NewFromFloat(nonCompliantBelow)}
}

// Classify returns Compliant at or above zero, Needs Attention down to the floor,
// Non-Compliant below it and Undetermined without a deviation.
func (c Classifier) Classify(deviation decimal.NullDecimal) models.Status {
	if !deviation.Valid {
		return models.StatusUndetermined
	}
	switch d := deviation.Decimal; {
	case !d.IsNegative():
		return models.StatusCompliant
	case d.GreaterThanOrEqual(c.nonCompliantBelow):
		return models.StatusNeedsAttention
	default:
		return models.StatusNonCompliant
	}
}
