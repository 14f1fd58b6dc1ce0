// Package payload decodes the metrics bodies served by the pull endpoint
// and embedded in push messages.
//
// Upstream deployments answer with one of several shapes:
//
//	{"pending":1,"approved":2,"denied":3,"payout":4.5}           flat
//	{"by_status":{"requested":10,"approved":6,"denied":1}}        by status, pending derived
//	{"metrics":{...}}                                             wrapper around either of the above
//
// Decode picks exactly one variant. A well-formed body matching none of them
// decodes to the zero variant.
package payload

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/and161185/portal-dashboard/model"
)

// ErrMalformed is returned for bodies that are not a JSON object.
var ErrMalformed = errors.New("malformed metrics payload")

// Shape tags the variant a payload was decoded from.
type Shape int

const (
	ShapeZero Shape = iota
	ShapeFlat
	ShapeByStatus
	ShapeWrapped
)

func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeByStatus:
		return "by_status"
	case ShapeWrapped:
		return "wrapped"
	default:
		return "zero"
	}
}

// Payload is the decoded union. Inner is set only for ShapeWrapped.
type Payload struct {
	Shape    Shape
	Inner    Shape
	Snapshot model.MetricSnapshot
}

// Known reports whether the payload matched a metrics shape.
func (p Payload) Known() bool {
	if p.Shape == ShapeWrapped {
		return p.Inner != ShapeZero
	}
	return p.Shape != ShapeZero
}

// Number accepts JSON numbers, numeric strings and null.
type Number float64

// UnmarshalJSON decodes a number, a quoted number or null into n.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = 0
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// unparsable strings count as absent
			*n = 0
			return nil
		}
		*n = Number(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

type flatBody struct {
	Pending  *Number `json:"pending"`
	Approved *Number `json:"approved"`
	Denied   *Number `json:"denied"`
	Payout   *Number `json:"payout"`
}

func (f flatBody) present() bool {
	return f.Pending != nil || f.Approved != nil || f.Denied != nil || f.Payout != nil
}

type byStatusBody struct {
	Requested Number `json:"requested"`
	Approved  Number `json:"approved"`
	Denied    Number `json:"denied"`
}

type envelope struct {
	Pending  *Number         `json:"pending"`
	Approved *Number         `json:"approved"`
	Denied   *Number         `json:"denied"`
	Payout   *Number         `json:"payout"`
	ByStatus json.RawMessage `json:"by_status"`
	Metrics  json.RawMessage `json:"metrics"`
}

func (e envelope) flat() flatBody {
	return flatBody{Pending: e.Pending, Approved: e.Approved, Denied: e.Denied, Payout: e.Payout}
}

// Decode parses raw into one payload variant.
func Decode(raw []byte) (Payload, error) {
	return decode(raw, true)
}

func decode(raw []byte, allowWrapper bool) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Payload{}, ErrMalformed
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if allowWrapper && isObject(env.Metrics) {
		inner, err := decode(env.Metrics, false)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Shape: ShapeWrapped, Inner: inner.Shape, Snapshot: inner.Snapshot}, nil
	}

	if isObject(env.ByStatus) {
		var b byStatusBody
		if err := json.Unmarshal(env.ByStatus, &b); err != nil {
			return Payload{}, fmt.Errorf("%w: by_status: %v", ErrMalformed, err)
		}
		return Payload{Shape: ShapeByStatus, Snapshot: fromByStatus(b, env.Payout)}, nil
	}

	if flat := env.flat(); flat.present() {
		return Payload{Shape: ShapeFlat, Snapshot: fromFlat(flat)}, nil
	}

	return Payload{Shape: ShapeZero}, nil
}

// DerivePending returns requested - (approved + denied), floored at zero.
func DerivePending(requested, approved, denied float64) float64 {
	p := requested - (approved + denied)
	if p < 0 {
		return 0
	}
	return p
}

func fromByStatus(b byStatusBody, payout *Number) model.MetricSnapshot {
	s := model.MetricSnapshot{
		Pending:  DerivePending(float64(b.Requested), float64(b.Approved), float64(b.Denied)),
		Approved: float64(b.Approved),
		Denied:   float64(b.Denied),
		Payout:   value(payout),
	}
	return s.Sanitize()
}

func fromFlat(f flatBody) model.MetricSnapshot {
	s := model.MetricSnapshot{
		Pending:  value(f.Pending),
		Approved: value(f.Approved),
		Denied:   value(f.Denied),
		Payout:   value(f.Payout),
	}
	return s.Sanitize()
}

func value(n *Number) float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
