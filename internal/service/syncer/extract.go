package syncer

import (
	"strings"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// ExtractExternalID returns the record's reconciliation key: the first id
// field with content, or the item id.
func ExtractExternalID(spec *domain.TypeSpec, rec *domain.ExternalRecord) string {
	for _, field := range spec.IDFields {
		if v, ok := rec.Field(field); ok {
			if s := v.AsString(); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(rec.ID)
}

// ExtractAttributes applies every attribute rule of the spec to the record.
// Attributes with no content map to "" so stale values are cleared.
func ExtractAttributes(spec *domain.TypeSpec, rec *domain.ExternalRecord, externalID string) (map[string]string, error) {
	attrs := make(map[string]string, len(spec.Attributes))
	for _, rule := range spec.Attributes {
		value := firstFormatted(rec, rule.Fields, rule.Format)
		if value == "" && rule.Required {
			return nil, &domain.RecordError{
				ExternalID: externalID,
				Field:      rule.Name,
				Err:        domain.ErrMissingField,
			}
		}
		attrs[rule.Name] = value
	}
	return attrs, nil
}

// ExtractMediaURL returns the first URL found in the slot's field chain
func ExtractMediaURL(slot domain.MediaSlot, rec *domain.ExternalRecord) string {
	return firstFormatted(rec, slot.Fields, domain.FormatURL)
}

// firstFormatted walks the fallback chain and returns the first field whose
// formatted value is non-empty
func firstFormatted(rec *domain.ExternalRecord, fields []string, format domain.FieldFormat) string {
	for _, field := range fields {
		v, ok := rec.Field(field)
		if !ok {
			continue
		}
		if s := formatValue(v, format); s != "" {
			return s
		}
	}
	return ""
}

func formatValue(v domain.Value, format domain.FieldFormat) string {
	switch format {
	case domain.FormatDate:
		if d := v.AsDate(); d != "" {
			return d
		}
		return v.AsString()
	case domain.FormatBool:
		b, ok := v.AsBool()
		if !ok {
			return ""
		}
		if b {
			return "1"
		}
		return "0"
	case domain.FormatURL:
		return v.AsURL()
	default:
		return v.AsString()
	}
}
