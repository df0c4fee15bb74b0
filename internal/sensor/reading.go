package sensor

import (
	"encoding/json"
	"fmt"
)

type Source int

const (
	SourceNone Source = iota
	SourceWearable
	SourcePhoneNative
	// SourceEstimate marks calories computed by the MET formula.
	SourceEstimate
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceWearable:
		return "wearable"
	case SourcePhoneNative:
		return "phone_native"
	case SourceEstimate:
		return "estimate"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseSource accepts the names produced by Source.String.
func ParseSource(name string) (Source, error) {
	switch name {
	case "wearable":
		return SourceWearable, nil
	case "phone_native", "phone":
		return SourcePhoneNative, nil
	case "estimate":
		return SourceEstimate, nil
	case "none":
		return SourceNone, nil
	}
	return SourceNone, fmt.Errorf("unknown sensor source %q", name)
}

type Channel int

const (
	HeartRate Channel = iota
	Cadence
	Calories
)

func (c Channel) String() string {
	switch c {
	case HeartRate:
		return "heart_rate"
	case Cadence:
		return "cadence"
	case Calories:
		return "calories"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

func ParseChannel(name string) (Channel, error) {
	switch name {
	case "heart_rate", "hr":
		return HeartRate, nil
	case "cadence":
		return Cadence, nil
	case "calories":
		return Calories, nil
	}
	return 0, fmt.Errorf("unknown sensor channel %q", name)
}

// Reading is either a value with the source that produced it, or absent.
// The zero Reading is absent.
type Reading struct {
	value   float64
	source  Source
	present bool
}

func Present(value float64, source Source) Reading {
	return Reading{value: value, source: source, present: true}
}

func Absent() Reading { return Reading{} }

func (r Reading) Value() (float64, bool) { return r.value, r.present }

func (r Reading) IsPresent() bool { return r.present }

// Source is SourceNone for an absent reading.
func (r Reading) Source() Source {
	if !r.present {
		return SourceNone
	}
	return r.source
}

// OrZero is for wire formats that use 0 as the absence sentinel.
func (r Reading) OrZero() float64 {
	if !r.present {
		return 0
	}
	return r.value
}

// Ptr returns nil for an absent reading.
func (r Reading) Ptr() *float64 {
	if !r.present {
		return nil
	}
	v := r.value
	return &v
}

type readingJSON struct {
	Value  *float64 `json:"value"`
	Source Source   `json:"source"`
}

func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{Value: r.Ptr(), Source: r.Source()})
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	var raw struct {
		Value  *float64 `json:"value"`
		Source string   `json:"source"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Value == nil {
		*r = Absent()
		return nil
	}
	src, err := ParseSource(raw.Source)
	if err != nil {
		return err
	}
	*r = Present(*raw.Value, src)
	return nil
}
