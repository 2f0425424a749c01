package estimate

import (
	"fmt"

	"github.com/rotblauer/aploc/params"
)

// Method is one of the closed set of position estimators.
// The declaration order is the selection priority when the ensemble is disabled.
type Method int

const (
	MethodMultilateration Method = iota
	MethodBayesian
	MethodCentroid
)

// Methods lists every method in priority order.
var Methods = []Method{MethodMultilateration, MethodBayesian, MethodCentroid}

func (m Method) String() string {
	switch m {
	case MethodMultilateration:
		return params.MethodMultilateration
	case MethodBayesian:
		return params.MethodBayesian
	case MethodCentroid:
		return params.MethodCentroid
	}
	return fmt.Sprintf("method(%d)", int(m))
}

func (m Method) Valid() bool {
	return m >= MethodMultilateration && m <= MethodCentroid
}

// ParseMethod accepts the configuration spellings, including aliases like "weighted_centroid".
func ParseMethod(s string) (Method, error) {
	name, ok := params.CanonicalMethod(s)
	if !ok {
		return 0, fmt.Errorf("unknown method %q", s)
	}
	for _, m := range Methods {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
