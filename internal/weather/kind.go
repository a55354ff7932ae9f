package weather

// ColumnKind is the storage-engine independent type of a value column.
type ColumnKind int

const (
	KindInteger ColumnKind = iota
	KindReal
	KindText
	KindUnbounded
)

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	default:
		return "unbounded"
	}
}

// MaxTextLength is the character cap of KindText columns.
const MaxTextLength = 255

// InferKind maps a reading value's shape onto a ColumnKind.
func InferKind(v any) ColumnKind {
	switch v.(type) {
	case int64:
		return KindInteger
	case float64:
		return KindReal
	case string:
		return KindText
	default:
		return KindUnbounded
	}
}
