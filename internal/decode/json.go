package decode

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bcicen/jstream"

	"github.com/tordrt/nestedtables/internal/value"
)

// ErrInexactNumber is returned for integers the decoder cannot hold exactly.
var ErrInexactNumber = errors.New("integer cannot be decoded exactly")

// jstream reads every number into a float64. From 2^53 on an integer in
// int64 range may already be rounded (2^53+1 reads as 2^53), so such values
// are refused rather than passed on as a different key.
const (
	maxExactInt = 1 << 53
	maxInt64    = 1 << 63
)

// DecodeJSON reads a stream of JSON values. Objects keep their key order and
// integral numbers become integers.
func DecodeJSON(r io.Reader) ([]value.Value, error) {
	dec := jstream.NewDecoder(r, 0).ObjectAsKVS()

	var (
		docs     []value.Value
		firstErr error
	)
	// the decoder goroutine only stops once the stream is drained
	for mv := range dec.Stream() {
		if firstErr != nil {
			continue
		}
		v, err := fromJSON(mv.Value, 0)
		if err != nil {
			firstErr = fmt.Errorf("document %d: %w", len(docs)+1, err)
			continue
		}
		docs = append(docs, v)
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return docs, nil
}

func fromJSON(x any, depth int) (value.Value, error) {
	if depth > maxNesting {
		return nil, tooDeep()
	}
	switch x := x.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(x), nil
	case string:
		return value.String(x), nil
	case float64:
		if a := math.Abs(x); a >= maxExactInt && a < maxInt64 && x == math.Trunc(x) {
			return nil, fmt.Errorf("%w: %.0f", ErrInexactNumber, x)
		}
		return value.IntegralFloat(x), nil
	case jstream.KVS:
		fields := make([]value.Field, 0, len(x))
		for _, kv := range x {
			v, err := fromJSON(kv.Value, depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, value.KV(kv.Key, v))
		}
		return value.NewObject(fields...), nil
	case []any:
		seq := make(value.Sequence, 0, len(x))
		for _, el := range x {
			v, err := fromJSON(el, depth+1)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	default:
		return value.FromAny(x)
	}
}
