package tsrpc

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Outcome is a response that is either a success value of type T or a
// failure value of type E. Unlike a returned error, the failure is part of
// the typed contract, so the client can switch on it:
//
//	{"result":"Ok","value":...}
//	{"result":"Err","value":...}
//
// The generated client type is Result<T, E>.
type Outcome[T, E any] struct {
	ok    bool
	value T
	err   E
}

// Ok returns a successful outcome.
func Ok[T, E any](v T) Outcome[T, E] {
	return Outcome[T, E]{ok: true, value: v}
}

// Fail returns a failed outcome.
func Fail[T, E any](e E) Outcome[T, E] {
	return Outcome[T, E]{err: e}
}

// IsOk reports whether o holds a success value.
func (o Outcome[T, E]) IsOk() bool { return o.ok }

// Value returns the success value and whether o is a success.
func (o Outcome[T, E]) Value() (T, bool) { return o.value, o.ok }

// Err returns the failure value and whether o is a failure.
func (o Outcome[T, E]) Err() (E, bool) { return o.err, !o.ok }

// OutcomeTypes reports the success and failure types for client generation.
func (Outcome[T, E]) OutcomeTypes() (reflect.Type, reflect.Type) {
	return reflect.TypeFor[T](), reflect.TypeFor[E]()
}

type outcomeWire struct {
	Result string          `json:"result"`
	Value  json.RawMessage `json:"value"`
}

func (o Outcome[T, E]) MarshalJSON() ([]byte, error) {
	var (
		tag = "Err"
		v   any
	)
	if o.ok {
		tag, v = "Ok", o.value
	} else {
		v = o.err
	}
	value, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(outcomeWire{Result: tag, Value: value})
}

func (o *Outcome[T, E]) UnmarshalJSON(data []byte) error {
	var w outcomeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var zero Outcome[T, E]
	*o = zero
	switch w.Result {
	case "Ok":
		o.ok = true
		return unmarshalValue(w.Value, &o.value)
	case "Err":
		return unmarshalValue(w.Value, &o.err)
	default:
		return fmt.Errorf("tsrpc: unknown outcome %q", w.Result)
	}
}

func unmarshalValue(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
