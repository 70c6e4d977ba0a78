package agoragql

import (
	"encoding/json"
	"fmt"
	"time"
)

// Instant is an RFC 3339 timestamp scalar.
type Instant time.Time

func NewInstant(t time.Time) Instant {
	return Instant(t.UTC())
}

func (Instant) ImplementsGraphQLType(name string) bool {
	return name == "Instant"
}

func (a *Instant) UnmarshalGraphQL(input interface{}) error {
	s, ok := input.(string)
	if !ok {
		return fmt.Errorf("unable to parse instant %v", input)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("unable to parse instant %v: %w", input, err)
	}
	*a = Instant(t)
	return nil
}

func (a Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(a).UTC().Format(time.RFC3339))
}

func (a Instant) Time() time.Time {
	return time.Time(a)
}
