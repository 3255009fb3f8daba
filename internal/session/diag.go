package session

import "fmt"

// Kind classifies a reported anomaly. None of them stop processing of
// the remaining metrics; Ignored*, Decode and UnknownTopic drop the message.
type Kind int

const (
	KindDecode Kind = iota + 1
	KindUnknownTopic
	KindIgnoredDead
	KindIgnoredIncompatible
	KindSequence
	KindBdSeqMissing
	KindBdSeqUnexpected
	KindBdSeqDuplicate
	KindBdSeqEmpty
	KindBdSeqMismatch
	KindVersionMissing
	KindVersionIncompatible
	KindVersionConflict
	KindVersionDuplicate
	KindUnrecognizedMetric
	KindUnsupportedType
	KindAliasConflict
	KindCatalog
)

var kindNames = map[Kind]string{
	KindDecode:              "decode",
	KindUnknownTopic:        "unknown-topic",
	KindIgnoredDead:         "ignored-dead",
	KindIgnoredIncompatible: "ignored-incompatible",
	KindSequence:            "seq",
	KindBdSeqMissing:        "bdseq-missing",
	KindBdSeqUnexpected:     "bdseq-unexpected",
	KindBdSeqDuplicate:      "bdseq-duplicate",
	KindBdSeqEmpty:          "bdseq-empty",
	KindBdSeqMismatch:       "bdseq-mismatch",
	KindVersionMissing:      "version-missing",
	KindVersionIncompatible: "version-incompatible",
	KindVersionConflict:     "version-conflict",
	KindVersionDuplicate:    "version-duplicate",
	KindUnrecognizedMetric:  "unrecognized-metric",
	KindUnsupportedType:     "unsupported-type",
	KindAliasConflict:       "alias-conflict",
	KindCatalog:             "catalog",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Diagnostic struct {
	Kind    Kind
	Message string
}

func (d Diagnostic) Error() string  { return d.Message }
func (d Diagnostic) String() string { return d.Kind.String() + ": " + d.Message }

type Diagnostics []Diagnostic

func (self *Diagnostics) add(kind Kind, format string, args ...interface{}) {
	*self = append(*self, Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (self Diagnostics) Has(kind Kind) bool {
	for _, d := range self {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func (self Diagnostics) Kinds() []Kind {
	ks := make([]Kind, len(self))
	for i, d := range self {
		ks[i] = d.Kind
	}
	return ks
}
