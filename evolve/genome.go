package evolve

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"math/rand"
	"strings"
	"sync"
)

const wordBits = 64

var randPool = sync.Pool{
	New: func() interface{} {
		return rand.New(rand.NewSource(rand.Int63()))
	},
}

// Genome is an immutable fixed-width bit string. Operations that change bits
// return a new Genome and leave the receiver untouched.
type Genome struct {
	words []uint64
	n     int
}

func newGenome(n int) Genome {
	return Genome{
		words: make([]uint64, (n+wordBits-1)/wordBits),
		n:     n,
	}
}

// ZeroGenome returns a genome of n zero bits.
func ZeroGenome(n int) Genome {
	return newGenome(n)
}

// RandomGenome returns a genome of n bits, each independently 0 or 1 with probability 0.5.
func RandomGenome(n int, rng *rand.Rand) Genome {
	g := newGenome(n)
	for i := range g.words {
		g.words[i] = rng.Uint64()
	}
	g.clearTail()
	return g
}

// ParseGenome reads a genome written as '0'/'1' characters, position 0 first.
// Spaces and '.' field separators are ignored.
func ParseGenome(geneString string) (Genome, error) {
	geneString = strings.NewReplacer(" ", "", ".", "").Replace(geneString)

	g := newGenome(len(geneString))
	for i, c := range geneString {
		switch c {
		case '1':
			g.words[i/wordBits] |= 1 << (i % wordBits)
		case '0':
		default:
			return Genome{}, fmt.Errorf("unrecognized genome string character %c, expected '1' or '0'", c)
		}
	}
	return g, nil
}

// MustParseGenome is ParseGenome for literals known to be valid.
func MustParseGenome(geneString string) Genome {
	g, err := ParseGenome(geneString)
	if err != nil {
		panic(err)
	}
	return g
}

func (g Genome) Len() int {
	return g.n
}

// Bit returns the bit at position i as 0 or 1.
func (g Genome) Bit(i int) uint8 {
	return uint8(g.words[i/wordBits] >> (i % wordBits) & 1)
}

// Ones counts the set bits.
func (g Genome) Ones() int {
	total := 0
	for _, w := range g.words {
		total += bits.OnesCount64(w)
	}
	return total
}

func (g Genome) Equal(other Genome) bool {
	if g.n != other.n {
		return false
	}
	for i := range g.words {
		if g.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Complement returns the genome with every bit inverted.
func (g Genome) Complement() Genome {
	flipped := newGenome(g.n)
	for i, w := range g.words {
		flipped.words[i] = ^w
	}
	flipped.clearTail()
	return flipped
}

// Key is a compact identity usable as a map or cache key.
func (g Genome) Key() string {
	buf := make([]byte, 8*len(g.words)+binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(g.n))
	for _, w := range g.words {
		binary.LittleEndian.PutUint64(buf[n:], w)
		n += 8
	}
	return string(buf[:n])
}

func (g Genome) String() string {
	var buf strings.Builder
	buf.Grow(g.n)
	for i := 0; i < g.n; i++ {
		buf.WriteByte('0' + g.Bit(i))
	}
	return buf.String()
}

// field reads bits [offset, offset+width) as an unsigned integer, bit offset
// being the least significant.
func (g Genome) field(offset, width int) uint64 {
	var v uint64
	for k := 0; k < width; k++ {
		v |= uint64(g.Bit(offset+k)) << k
	}
	return v
}

func (g *Genome) set(i int, bit uint8) {
	mask := uint64(1) << (i % wordBits)
	if bit == 0 {
		g.words[i/wordBits] &^= mask
	} else {
		g.words[i/wordBits] |= mask
	}
}

func (g *Genome) clearTail() {
	if rem := g.n % wordBits; rem != 0 {
		g.words[len(g.words)-1] &= (uint64(1) << rem) - 1
	}
}

// splice assembles a genome from consecutive segments: segment k spans
// [cuts[k-1], cuts[k]) and is copied from sources[k]. cuts must be sorted.
func splice(sources []Genome, cuts []int) Genome {
	n := sources[0].n
	spliced := newGenome(n)

	start := 0
	for k, source := range sources {
		end := n
		if k < len(cuts) {
			end = cuts[k]
		}
		for i := start; i < end; i++ {
			spliced.set(i, source.Bit(i))
		}
		if end > start {
			start = end
		}
	}
	return spliced
}
