package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/bobmcallan/bqlite/internal/models"
)

// messageToRecord converts one decoded dynamicpb message to a map keyed
// by the schema's top-level field names, applying the §4.5 type
// coercions and filling missing fields with type-appropriate defaults —
// ported from protobuf_ingester.py's prepare_records_for_insertion /
// _convert_field_value / _get_default_value.
func messageToRecord(msg protoreflect.Message, roots []models.SchemaField) map[string]any {
	record := make(map[string]any, len(roots)+2)
	desc := msg.Descriptor()

	for _, f := range roots {
		fd := desc.Fields().ByName(protoreflect.Name(f.Name))
		if fd == nil || !msg.Has(fd) {
			record[f.Name] = defaultValue(f.Type)
			continue
		}
		record[f.Name] = convertFieldValue(msg.Get(fd), fd, f.Type)
	}
	return record
}

// convertFieldValue coerces one protoreflect value to the Go type that
// matches its BigQuery field type, mirroring _convert_field_value's
// per-type switch exactly (RECORD/REPEATED both become JSON strings).
func convertFieldValue(v protoreflect.Value, fd protoreflect.FieldDescriptor, fieldType models.FieldType) any {
	if fd.Cardinality() == protoreflect.Repeated {
		list := v.List()
		items := make([]any, list.Len())
		for i := 0; i < list.Len(); i++ {
			items[i] = scalarValue(list.Get(i), fd)
		}
		encoded, err := json.Marshal(items)
		if err != nil {
			return "[]"
		}
		return string(encoded)
	}

	switch fieldType {
	case models.TypeRecord:
		encoded, err := json.Marshal(v.Interface())
		if err != nil {
			return "{}"
		}
		return string(encoded)
	default:
		return scalarValue(v, fd)
	}
}

func scalarValue(v protoreflect.Value, fd protoreflect.FieldDescriptor) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.Int32Kind, protoreflect.Int64Kind,
		protoreflect.Sint32Kind, protoreflect.Sint64Kind,
		protoreflect.Uint32Kind, protoreflect.Uint64Kind,
		protoreflect.Fixed32Kind, protoreflect.Fixed64Kind,
		protoreflect.Sfixed32Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.EnumKind:
		return int64(v.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		encoded, err := json.Marshal(v.Message().Interface())
		if err != nil {
			return "{}"
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// defaultValue mirrors _get_default_value's per-type defaults for fields
// absent from a decoded message.
func defaultValue(fieldType models.FieldType) any {
	switch fieldType {
	case models.TypeString:
		return ""
	case models.TypeInteger:
		return int64(0)
	case models.TypeFloat:
		return float64(0)
	case models.TypeBoolean:
		return false
	case models.TypeTimestamp:
		return time.Now().UTC().Format(time.RFC3339)
	case models.TypeRecord:
		return "{}"
	default:
		return ""
	}
}
