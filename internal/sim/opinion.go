package sim

import "fmt"

// Opinion is an agent's political leaning. Only equality is meaningful.
type Opinion int

const (
	Progressive Opinion = iota
	Conservative
	Neutral
)

func (o Opinion) String() string {
	switch o {
	case Progressive:
		return "progressive"
	case Conservative:
		return "conservative"
	case Neutral:
		return "neutral"
	default:
		return fmt.Sprintf("opinion(%d)", int(o))
	}
}

// MarshalText encodes the opinion by name.
func (o Opinion) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an opinion name.
func (o *Opinion) UnmarshalText(b []byte) error {
	switch string(b) {
	case "progressive":
		*o = Progressive
	case "conservative":
		*o = Conservative
	case "neutral":
		*o = Neutral
	default:
		return fmt.Errorf("unknown opinion %q", string(b))
	}
	return nil
}

// Kind separates agents whose opinion can change from fixed opinion sources.
type Kind int

const (
	Human Kind = iota
	Bot
)

func (k Kind) String() string {
	switch k {
	case Human:
		return "human"
	case Bot:
		return "bot"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
