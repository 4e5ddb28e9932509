package domain

import (
	"fmt"
	"strings"
	"time"
)

type FieldErrorKind string

const (
	KindRequired      FieldErrorKind = "required"
	KindInvalidFormat FieldErrorKind = "invalid_format"
	KindInvalidRange  FieldErrorKind = "invalid_range"
)

// FieldError annotates a single field of a draft. Annotations are advisory and
// never block submission.
type FieldError struct {
	Field   Field          `json:"field"`
	Kind    FieldErrorKind `json:"kind"`
	Message string         `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Kind, e.Message)
}

type FieldErrors []FieldError

// For returns the annotations attached to field.
func (fe FieldErrors) For(field Field) FieldErrors {
	var out FieldErrors
	for _, e := range fe {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

func (fe FieldErrors) Has(field Field, kind FieldErrorKind) bool {
	for _, e := range fe {
		if e.Field == field && e.Kind == kind {
			return true
		}
	}
	return false
}

// dateLayouts are tried in order; the first is the canonical one.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"02-01-06",
}

// ParseDate parses an ISO or Chilean (DD-MM-YYYY, DD/MM/YYYY, DD-MM-YY) date.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate rewrites a parsable date to YYYY-MM-DD and returns anything
// else untouched so the operator can still correct it.
func NormalizeDate(value string) string {
	t, ok := ParseDate(value)
	if !ok {
		return value
	}
	return t.Format(dateLayouts[0])
}

// Normalized returns a copy with the RUT cleaned and dates in ISO form.
func (l License) Normalized() License {
	out := l
	out.ProfessionalName = strings.TrimSpace(out.ProfessionalName)
	out.Issuer = strings.TrimSpace(out.Issuer)
	out.ProfessionalID = NormalizeRUT(out.ProfessionalID)
	out.StartDate = NormalizeDate(out.StartDate)
	out.EndDate = NormalizeDate(out.EndDate)
	out.DiagnosisCode = strings.TrimSpace(out.DiagnosisCode)
	return out
}

// Validate annotates l. It never fails: an empty result means no findings.
func Validate(l License) FieldErrors {
	var errs FieldErrors

	if strings.TrimSpace(l.ProfessionalName) == "" {
		errs = append(errs, FieldError{Field: FieldProfessionalName, Kind: KindRequired, Message: "professional name is required"})
	}
	if strings.TrimSpace(l.Issuer) == "" {
		errs = append(errs, FieldError{Field: FieldIssuer, Kind: KindRequired, Message: "issuer is required"})
	}
	if strings.TrimSpace(l.ProfessionalID) != "" && !ValidRUT(l.ProfessionalID) {
		errs = append(errs, FieldError{Field: FieldProfessionalID, Kind: KindInvalidFormat, Message: "RUT format or check digit is invalid"})
	}

	start, startOK := parseDateField(l.StartDate, FieldStartDate, &errs)
	end, endOK := parseDateField(l.EndDate, FieldEndDate, &errs)
	if startOK && endOK && end.Before(start) {
		errs = append(errs, FieldError{Field: FieldEndDate, Kind: KindInvalidRange, Message: "end date is before start date"})
	}

	if l.RestDays < 0 {
		errs = append(errs, FieldError{Field: FieldRestDays, Kind: KindInvalidRange, Message: "rest days must not be negative"})
	}
	return errs
}

func parseDateField(value string, field Field, errs *FieldErrors) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, false
	}
	t, ok := ParseDate(value)
	if !ok {
		*errs = append(*errs, FieldError{Field: field, Kind: KindInvalidFormat, Message: fmt.Sprintf("unrecognized date %q", value)})
	}
	return t, ok
}
