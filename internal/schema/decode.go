package schema

import (
	"encoding/json"
	"fmt"
)

// ReceiptKind discriminates the receipt families the compare loader can
// encounter in an evidence root.
type ReceiptKind string

const (
	KindSafeRunReceipt  ReceiptKind = "safe_run_receipt"
	KindRunReceipt      ReceiptKind = "run_receipt"
	KindHostRunReceipt  ReceiptKind = "host_run_receipt"
	KindCompareReceipt  ReceiptKind = "compare_receipt"
	KindOperatorReceipt ReceiptKind = "operator_receipt"
)

// Receipt is the typed discriminated variant produced by DecodeReceipt. The
// pointer for the decoded kind is set; all others are nil.
type Receipt struct {
	Kind     ReceiptKind
	SafeRun  *SafeRunReceipt
	Run      *RunReceipt
	HostRun  *HostRunReceipt
	Compare  *CompareReceipt
	Operator *OperatorReceipt
}

// Header returns the shared header of whichever receipt was decoded.
func (r *Receipt) Header() Header {
	switch r.Kind {
	case KindSafeRunReceipt:
		return r.SafeRun.Header
	case KindRunReceipt:
		return r.Run.Header
	case KindHostRunReceipt:
		return r.HostRun.Header
	case KindCompareReceipt:
		return r.Compare.Header
	default:
		return r.Operator.Header
	}
}

// DecodeReceipt parses b into the typed variant selected by the document's
// schema field. Unknown schemas are an error; callers map it to the
// side-appropriate invalid code.
func DecodeReceipt(b []byte) (*Receipt, error) {
	var probe struct {
		Schema string `json:"schema"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("schema: probe receipt: %w", err)
	}

	switch probe.Schema {
	case SchemaSafeRunReceipt:
		var v SafeRunReceipt
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return &Receipt{Kind: KindSafeRunReceipt, SafeRun: &v}, nil
	case SchemaRunReceipt:
		var v RunReceipt
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return &Receipt{Kind: KindRunReceipt, Run: &v}, nil
	case SchemaHostRunReceipt:
		var v HostRunReceipt
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return &Receipt{Kind: KindHostRunReceipt, HostRun: &v}, nil
	case SchemaCompareReceipt:
		var v CompareReceipt
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return &Receipt{Kind: KindCompareReceipt, Compare: &v}, nil
	case SchemaOperatorReceipt:
		var v OperatorReceipt
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return &Receipt{Kind: KindOperatorReceipt, Operator: &v}, nil
	default:
		return nil, fmt.Errorf("schema: unknown receipt schema %q", probe.Schema)
	}
}

// Issues dispatches to the decoded receipt's validator.
func (r *Receipt) Issues() []string {
	var codes []string
	switch r.Kind {
	case KindSafeRunReceipt:
		for _, c := range r.SafeRun.Validate() {
			codes = append(codes, string(c))
		}
	case KindRunReceipt:
		for _, c := range r.Run.Validate() {
			codes = append(codes, string(c))
		}
	case KindHostRunReceipt:
		for _, c := range r.HostRun.Validate() {
			codes = append(codes, string(c))
		}
	case KindCompareReceipt:
		for _, c := range r.Compare.Validate() {
			codes = append(codes, string(c))
		}
	case KindOperatorReceipt:
		for _, c := range r.Operator.Validate() {
			codes = append(codes, string(c))
		}
	}
	return codes
}
