package evolve

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxPropertyBits is the widest field a single property may occupy.
const MaxPropertyBits = 64

// Property is one named field of a genome.
type Property struct {
	Name string
	Bits int

	// Optional linear scaling used by DecodeScaled: Min + value*Step.
	// A zero Step means 1.
	Min  float64
	Step float64
}

// Scale converts a decoded field value to problem units.
func (p Property) Scale(value uint64) float64 {
	step := p.Step
	if step == 0 {
		step = 1
	}
	return p.Min + float64(value)*step
}

// MaxValue is the largest integer the field can hold, 2^Bits - 1.
func (p Property) MaxValue() uint64 {
	if p.Bits >= MaxPropertyBits {
		return math.MaxUint64
	}
	return uint64(1)<<p.Bits - 1
}

// PropertySpec is the ordered field layout of a genome. Fields are packed
// back to back in declaration order.
type PropertySpec []Property

// NewPropertySpec validates the properties and returns them as a spec.
func NewPropertySpec(props ...Property) (PropertySpec, error) {
	spec := PropertySpec(props)
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// MustPropertySpec is NewPropertySpec for fixed layouts.
func MustPropertySpec(props ...Property) PropertySpec {
	spec, err := NewPropertySpec(props...)
	if err != nil {
		panic(err)
	}
	return spec
}

func (s PropertySpec) Validate() error {
	if len(s) == 0 {
		return violation("property spec", "at least one property is required")
	}
	seen := make(map[string]struct{}, len(s))
	for i, p := range s {
		if p.Name == "" {
			return violation("property spec", "property %d has no name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return violation("property spec", "duplicate property %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Bits <= 0 || p.Bits > MaxPropertyBits {
			return violation("property spec", "property %q has width %d, expected 1..%d", p.Name, p.Bits, MaxPropertyBits)
		}
	}
	return nil
}

// Len is the total genome width.
func (s PropertySpec) Len() int {
	total := 0
	for _, p := range s {
		total += p.Bits
	}
	return total
}

func (s PropertySpec) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// Decode splits the genome into one unsigned integer per property. Within
// a field the first bit is the least significant.
func (s PropertySpec) Decode(g Genome) ([]uint64, error) {
	if g.Len() != s.Len() {
		return nil, violation("decode", "genome has %d bits, property spec expects %d", g.Len(), s.Len())
	}

	values := make([]uint64, len(s))
	offset := 0
	for i, p := range s {
		values[i] = g.field(offset, p.Bits)
		offset += p.Bits
	}
	return values, nil
}

// DecodeScaled decodes the genome and applies each property's linear scaling.
func (s PropertySpec) DecodeScaled(g Genome) ([]float64, error) {
	values, err := s.Decode(g)
	if err != nil {
		return nil, err
	}
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = s[i].Scale(v)
	}
	return scaled, nil
}

// Encode is the inverse of Decode.
func (s PropertySpec) Encode(values []uint64) (Genome, error) {
	if len(values) != len(s) {
		return Genome{}, violation("encode", "got %d values for %d properties", len(values), len(s))
	}

	g := newGenome(s.Len())
	offset := 0
	for i, p := range s {
		if values[i] > p.MaxValue() {
			return Genome{}, violation("encode", "value %d does not fit %d bits of %q", values[i], p.Bits, p.Name)
		}
		for k := 0; k < p.Bits; k++ {
			g.set(offset+k, uint8(values[i]>>k&1))
		}
		offset += p.Bits
	}
	return g, nil
}

// RandomGenome returns a uniformly random genome as wide as all properties together.
func (s PropertySpec) RandomGenome(rng *rand.Rand) Genome {
	return RandomGenome(s.Len(), rng)
}

// Format renders the genome with '.' between property fields.
func (s PropertySpec) Format(g Genome) string {
	raw := g.String()
	if len(raw) != s.Len() {
		return raw
	}

	fields := make([]string, len(s))
	offset := 0
	for i, p := range s {
		fields[i] = raw[offset : offset+p.Bits]
		offset += p.Bits
	}
	return strings.Join(fields, ".")
}

// UnmarshalYAML reads a mapping of property name to bit width, keeping the
// mapping's key order as the field layout:
//
//	diameter: 5
//	height: 5
//
// A property may also be given as a mapping with bits, min and step keys.
func (s *PropertySpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping of name to bit width", value.Line)
	}

	spec := make(PropertySpec, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valueNode := value.Content[i], value.Content[i+1]

		prop := Property{Name: keyNode.Value}
		switch valueNode.Kind {
		case yaml.ScalarNode:
			if err := valueNode.Decode(&prop.Bits); err != nil {
				return fmt.Errorf("property %q: %w", prop.Name, err)
			}
		case yaml.MappingNode:
			var detailed struct {
				Bits int     `yaml:"bits"`
				Min  float64 `yaml:"min"`
				Step float64 `yaml:"step"`
			}
			if err := valueNode.Decode(&detailed); err != nil {
				return fmt.Errorf("property %q: %w", prop.Name, err)
			}
			prop.Bits, prop.Min, prop.Step = detailed.Bits, detailed.Min, detailed.Step
		default:
			return fmt.Errorf("line %d: property %q must be a bit width or a mapping", valueNode.Line, prop.Name)
		}
		spec = append(spec, prop)
	}

	*s = spec
	return nil
}

// BitsForRange is the number of bits needed to address every step of
// [min, max], that is ceil(log2(|max-min|/step + 1)), and at least 1.
func BitsForRange(min, max, step float64) int {
	if step <= 0 {
		step = 1
	}
	span := math.Floor(math.Abs(max-min) / step)
	n := int(math.Ceil(math.Log2(span + 1)))
	if n < 1 {
		return 1
	}
	return n
}
