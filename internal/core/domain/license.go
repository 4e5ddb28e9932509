package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Field names a License attribute by its wire key.
type Field string

const (
	FieldProfessionalName Field = "nombre_profesor"
	FieldProfessionalID   Field = "rut_profesor"
	FieldIssuer           Field = "emitido_por"
	FieldStartDate        Field = "fecha_inicio"
	FieldEndDate          Field = "fecha_fin"
	FieldRestDays         Field = "dias_reposo"
	FieldDiagnosisCode    Field = "diagnostico_codigo"
)

// Fields lists every License field in form order.
var Fields = []Field{
	FieldProfessionalName,
	FieldProfessionalID,
	FieldIssuer,
	FieldStartDate,
	FieldEndDate,
	FieldRestDays,
	FieldDiagnosisCode,
}

// License is the structured content of a medical-leave certificate. Dates stay
// as strings so that malformed extractions can be shown and corrected.
type License struct {
	ProfessionalName string `json:"nombre_profesor"`
	ProfessionalID   string `json:"rut_profesor"`
	Issuer           string `json:"emitido_por"`
	StartDate        string `json:"fecha_inicio"`
	EndDate          string `json:"fecha_fin"`
	RestDays         int    `json:"dias_reposo"`
	DiagnosisCode    string `json:"diagnostico_codigo"`
}

// ConfirmedRecord is a License as stored by the persistence service.
type ConfirmedRecord struct {
	ID string `json:"id"`
	License
	CreatedAt time.Time `json:"created_at,omitzero"`
	// NotifiedAt is set once the replacement notification went out.
	NotifiedAt time.Time `json:"notified_at,omitzero"`
}

// DecodeLicense maps an untrusted JSON object onto a License. Missing, null or
// mistyped keys fall back to "" or 0; only a non-object payload is an error.
func DecodeLicense(raw []byte) (License, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return License{}, WrapError(ErrInvalidInput, "decode license", err)
	}
	if fields == nil {
		return License{}, WrapError(ErrInvalidInput, "decode license", fmt.Errorf("payload is not a json object"))
	}
	return licenseFromRaw(fields), nil
}

// DecodeConfirmedRecord maps a persistence response onto a ConfirmedRecord
// with the same leniency as DecodeLicense.
func DecodeConfirmedRecord(raw []byte) (ConfirmedRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ConfirmedRecord{}, WrapError(ErrInvalidInput, "decode confirmed record", err)
	}
	if fields == nil {
		return ConfirmedRecord{}, WrapError(ErrInvalidInput, "decode confirmed record", fmt.Errorf("payload is not a json object"))
	}

	record := ConfirmedRecord{
		ID:      rawString(fields["id"]),
		License: licenseFromRaw(fields),
	}
	record.CreatedAt = rawTime(fields["created_at"])
	record.NotifiedAt = rawTime(fields["notified_at"])
	return record, nil
}

func licenseFromRaw(fields map[string]json.RawMessage) License {
	return License{
		ProfessionalName: rawString(fields[string(FieldProfessionalName)]),
		ProfessionalID:   rawString(fields[string(FieldProfessionalID)]),
		Issuer:           rawString(fields[string(FieldIssuer)]),
		StartDate:        rawString(fields[string(FieldStartDate)]),
		EndDate:          rawString(fields[string(FieldEndDate)]),
		RestDays:         rawInt(fields[string(FieldRestDays)]),
		DiagnosisCode:    rawString(fields[string(FieldDiagnosisCode)]),
	}
}

func rawTime(raw json.RawMessage) time.Time {
	value := rawString(raw)
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

func rawInt(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return clampInt(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := parseIntString(s)
		if err == nil {
			return n
		}
	}
	return 0
}

func parseIntString(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return clampInt(f), nil
}

func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	default:
		return int(f)
	}
}

// Get returns the value of field; RestDays is returned as int.
func (l License) Get(field Field) (any, error) {
	switch field {
	case FieldProfessionalName:
		return l.ProfessionalName, nil
	case FieldProfessionalID:
		return l.ProfessionalID, nil
	case FieldIssuer:
		return l.Issuer, nil
	case FieldStartDate:
		return l.StartDate, nil
	case FieldEndDate:
		return l.EndDate, nil
	case FieldRestDays:
		return l.RestDays, nil
	case FieldDiagnosisCode:
		return l.DiagnosisCode, nil
	default:
		return nil, WrapError(ErrInvalidInput, "get field", fmt.Errorf("unknown field %q", field))
	}
}

// Set replaces one field. String fields accept any scalar; RestDays accepts
// integers, integral floats and numeric strings. No domain validation happens
// here.
func (l *License) Set(field Field, value any) error {
	if field == FieldRestDays {
		n, err := coerceInt(value)
		if err != nil {
			return WrapError(ErrInvalidInput, "set "+string(field), err)
		}
		l.RestDays = n
		return nil
	}

	s, err := coerceString(value)
	if err != nil {
		return WrapError(ErrInvalidInput, "set "+string(field), err)
	}
	switch field {
	case FieldProfessionalName:
		l.ProfessionalName = s
	case FieldProfessionalID:
		l.ProfessionalID = s
	case FieldIssuer:
		l.Issuer = s
	case FieldStartDate:
		l.StartDate = s
	case FieldEndDate:
		l.EndDate = s
	case FieldDiagnosisCode:
		l.DiagnosisCode = s
	default:
		return WrapError(ErrInvalidInput, "set field", fmt.Errorf("unknown field %q", field))
	}
	return nil
}

func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}

func coerceInt(value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint:
		return unsignedInt(uint64(v))
	case uint64:
		return unsignedInt(v)
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	case json.Number:
		return parseIntString(v.String())
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		n, err := parseIntString(v)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}
}

func unsignedInt(v uint64) (int, error) {
	if v > math.MaxInt {
		return 0, fmt.Errorf("value %d out of range", v)
	}
	return int(v), nil
}

func integralFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return clampInt(f), nil
}
