// Package genes decodes the two opaque 256-bit hero gene strings into a
// structured trait matrix. Decoding is pure and deterministic: no I/O, no
// clock, and no panics on well-formed input.
package genes

import (
	"fmt"
	"math/big"
	"strings"
)

// The on-chain genes serialize in "kai" notation: base 32 over an alphabet
// that skips 0, l and y to stay unambiguous when written out.
const kaiAlphabet = "123456789abcdefghijkmnopqrstuvwx"

const (
	slotCount = 12
	geneLen   = slotCount * 4 // 48 kai characters after left-padding
	base      = 32
)

// TraitQuad holds the four genes of one slot: the expressed dominant plus
// three recessives in descending influence.
type TraitQuad struct {
	D  Gene `json:"d"`
	R1 Gene `json:"r1"`
	R2 Gene `json:"r2"`
	R3 Gene `json:"r3"`
}

// Contains reports whether any of the four positions carries g.
func (q TraitQuad) Contains(g Gene) bool {
	return q.D == g || q.R1 == g || q.R2 == g || q.R3 == g
}

// StatTraits is the decoded stat gene matrix.
type StatTraits struct {
	Class         TraitQuad `json:"class"`
	SubClass      TraitQuad `json:"subClass"`
	Profession    TraitQuad `json:"profession"`
	Passive1      TraitQuad `json:"passive1"`
	Passive2      TraitQuad `json:"passive2"`
	Active1       TraitQuad `json:"active1"`
	Active2       TraitQuad `json:"active2"`
	StatBoost1    TraitQuad `json:"statBoost1"`
	StatBoost2    TraitQuad `json:"statBoost2"`
	StatsUnknown1 TraitQuad `json:"statsUnknown1"`
	Element       TraitQuad `json:"element"`
	StatsUnknown2 TraitQuad `json:"statsUnknown2"`
}

// VisualTraits is the decoded visual gene matrix.
type VisualTraits struct {
	Gender             TraitQuad `json:"gender"`
	HeadAppendage      TraitQuad `json:"headAppendage"`
	BackAppendage      TraitQuad `json:"backAppendage"`
	Background         TraitQuad `json:"background"`
	HairStyle          TraitQuad `json:"hairStyle"`
	HairColor          TraitQuad `json:"hairColor"`
	VisualUnknown1     TraitQuad `json:"visualUnknown1"`
	EyeColor           TraitQuad `json:"eyeColor"`
	SkinColor          TraitQuad `json:"skinColor"`
	AppendageColor     TraitQuad `json:"appendageColor"`
	BackAppendageColor TraitQuad `json:"backAppendageColor"`
	VisualUnknown2     TraitQuad `json:"visualUnknown2"`
}

// HeroGenes is the full genetic record for one hero.
type HeroGenes struct {
	Stats  StatTraits   `json:"stats"`
	Visual VisualTraits `json:"visual"`
}

// Decode transforms the two numeric gene strings into the trait matrix.
func Decode(statGenes, visualGenes string) (*HeroGenes, error) {
	stats, err := decodeQuads(statGenes)
	if err != nil {
		return nil, fmt.Errorf("stat genes: %w", err)
	}
	visual, err := decodeQuads(visualGenes)
	if err != nil {
		return nil, fmt.Errorf("visual genes: %w", err)
	}

	var hg HeroGenes
	hg.Stats = StatTraits{
		Class: stats[0], SubClass: stats[1], Profession: stats[2],
		Passive1: stats[3], Passive2: stats[4], Active1: stats[5], Active2: stats[6],
		StatBoost1: stats[7], StatBoost2: stats[8], StatsUnknown1: stats[9],
		Element: stats[10], StatsUnknown2: stats[11],
	}
	hg.Visual = VisualTraits{
		Gender: visual[0], HeadAppendage: visual[1], BackAppendage: visual[2], Background: visual[3],
		HairStyle: visual[4], HairColor: visual[5], VisualUnknown1: visual[6], EyeColor: visual[7],
		SkinColor: visual[8], AppendageColor: visual[9], BackAppendageColor: visual[10], VisualUnknown2: visual[11],
	}
	return &hg, nil
}

// HasProfessionGene reports whether the profession slot carries p in any of
// D/R1/R2/R3. Gene-matched questing counts recessives too.
func HasProfessionGene(hg *HeroGenes, p Gene) bool {
	return hg.Stats.Profession.Contains(p)
}

// decodeQuads converts one gene number into the 12 trait quads. The kai
// string is left-padded to 48 characters; each group of 4 lands on one slot
// in wire order R3, R2, R1, D.
func decodeQuads(geneStr string) ([slotCount]TraitQuad, error) {
	var quads [slotCount]TraitQuad

	n, ok := new(big.Int).SetString(strings.TrimSpace(geneStr), 10)
	if !ok || n.Sign() < 0 {
		return quads, fmt.Errorf("not a non-negative integer: %q", geneStr)
	}

	kai, err := toKai(n)
	if err != nil {
		return quads, err
	}

	for slot := 0; slot < slotCount; slot++ {
		g := kai[slot*4 : slot*4+4]
		quads[slot] = TraitQuad{R3: g[0], R2: g[1], R1: g[2], D: g[3]}
	}
	return quads, nil
}

// toKai renders n as 48 base-32 gene values, most significant first.
func toKai(n *big.Int) ([]Gene, error) {
	digits := make([]Gene, 0, geneLen)
	x := new(big.Int).Set(n)
	rem := new(big.Int)
	b := big.NewInt(base)
	for x.Sign() > 0 {
		x.DivMod(x, b, rem)
		digits = append(digits, Gene(rem.Int64()))
	}
	if len(digits) > geneLen {
		return nil, fmt.Errorf("gene value exceeds %d base-32 digits", geneLen)
	}
	out := make([]Gene, geneLen)
	for i, d := range digits {
		out[geneLen-1-i] = d
	}
	return out, nil
}

// KaiString renders a gene number in the kai alphabet, padded to 48
// characters. Useful for debugging decode disagreements.
func KaiString(geneStr string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(geneStr), 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("not a non-negative integer: %q", geneStr)
	}
	digits, err := toKai(n)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, d := range digits {
		sb.WriteByte(kaiAlphabet[int(d)])
	}
	return sb.String(), nil
}
