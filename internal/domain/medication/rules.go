package medication

import (
	"strconv"

	"github.com/ehr/chart/internal/platform/validation"
)

// DiscontinuationReasons is the closed list offered when stopping a medication.
var DiscontinuationReasons = []string{
	"Completed course",
	"Adverse reaction",
	"Ineffective",
	"Patient request",
	"Drug interaction",
	"Contraindication developed",
	"Switched to alternative",
	"No longer indicated",
	"Duplicate",
	"Other",
}

// IsDiscontinuationReason reports whether s is on the standard list.
func IsDiscontinuationReason(s string) bool {
	for _, r := range DiscontinuationReasons {
		if r == s {
			return true
		}
	}
	return false
}

// DiscontinueRules is evaluated against {"reason": ...} before Discontinue.
func DiscontinueRules() []validation.Rule {
	return []validation.Rule{
		validation.Required("reason", "A discontinuation reason is required", validation.SeverityError),
		validation.Custom("reason", func(v interface{}) bool {
			s, _ := v.(string)
			return s == "" || IsDiscontinuationReason(s)
		}, "Reason is not one of the standard discontinuation reasons", validation.SeverityInfo),
	}
}

// FormRules are the medication order form rules. Keys follow FormData.
func FormRules() []validation.Rule {
	dosePattern, _ := validation.PatternString("dosage.amount", `^\d+(\.\d{1,3})?$`,
		"Dosage may have at most 3 decimal places", validation.SeverityError)

	return []validation.Rule{
		validation.Required("name", "Medication name is required", validation.SeverityError),
		validation.MaxLength("name", 200, "Medication name is too long", validation.SeverityError),
		validation.Required("dosage.amount", "Dosage amount is required", validation.SeverityError),
		validation.Named("dosage.amount", validation.ValidatorPositiveNumber, "Dosage must be a positive number", validation.SeverityError),
		dosePattern,
		validation.Required("dosage.unit", "Dosage unit is required", validation.SeverityError),
		validation.Custom("frequency.times", func(v interface{}) bool {
			n, ok := toInt(v)
			return ok && n >= 1 && n <= 24
		}, "Frequency must be between 1 and 24 times", validation.SeverityError),
		validation.Custom("frequency.period", func(v interface{}) bool {
			switch Period(toString(v)) {
			case PeriodDaily, PeriodWeekly, PeriodMonthly:
				return true
			}
			return false
		}, "Frequency period must be daily, weekly or monthly", validation.SeverityError),
		validation.Custom("route", func(v interface{}) bool {
			return Route(toString(v)).IsValid()
		}, "Select a route of administration", validation.SeverityError),
		validation.Required("start_date", "Start date is required", validation.SeverityError),
		validation.Named("start_date", validation.ValidatorDate, "Start date must be YYYY-MM-DD", validation.SeverityError),
		validation.Named("end_date", validation.ValidatorDate, "End date must be YYYY-MM-DD", validation.SeverityError),
		validation.Required("prescribed_by", "Prescriber is required", validation.SeverityError),
		validation.Required("indication", "Consider documenting an indication", validation.SeverityInfo),
	}
}

// FormData flattens a medication into the field map FormRules evaluates.
func FormData(in NewMedication) map[string]interface{} {
	return map[string]interface{}{
		"name":             in.Name,
		"dosage.amount":    in.Dosage.Amount,
		"dosage.unit":      in.Dosage.Unit,
		"frequency.times":  in.Frequency.Times,
		"frequency.period": string(in.Frequency.Period),
		"route":            string(in.Route),
		"start_date":       in.StartDate,
		"end_date":         in.EndDate,
		"prescribed_by":    in.PrescribedBy.Name,
		"indication":       in.Indication,
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
