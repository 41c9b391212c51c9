package genes

import "fmt"

// Gene is a single decoded gene value. Values come from the on-chain gene
// encoding; names below are the v1 trait tables. Unknown values render as
// Unknown(n) instead of failing the decode.
type Gene int

// Profession gene values.
const (
	Mining    Gene = 0
	Gardening Gene = 2
	Fishing   Gene = 4
	Foraging  Gene = 6
)

var classNames = map[Gene]string{
	0:  "Warrior",
	1:  "Knight",
	2:  "Thief",
	3:  "Archer",
	4:  "Priest",
	5:  "Wizard",
	6:  "Monk",
	7:  "Pirate",
	8:  "Berserker",
	9:  "Seer",
	10: "Legionnaire",
	11: "Scholar",
	16: "Paladin",
	17: "DarkKnight",
	18: "Summoner",
	19: "Ninja",
	20: "Shapeshifter",
	21: "Bard",
	24: "Dragoon",
	25: "Sage",
	26: "SpellBow",
	28: "DreadKnight",
}

var professionNames = map[Gene]string{
	Mining:    "Mining",
	Gardening: "Gardening",
	Fishing:   "Fishing",
	Foraging:  "Foraging",
}

var elementNames = map[Gene]string{
	0:  "Fire",
	2:  "Water",
	4:  "Earth",
	6:  "Wind",
	8:  "Lightning",
	10: "Ice",
	12: "Light",
	14: "Dark",
}

var statNames = map[Gene]string{
	0:  "STR",
	2:  "AGI",
	4:  "INT",
	6:  "WIS",
	8:  "LCK",
	10: "VIT",
	12: "END",
	14: "DEX",
}

func ClassName(g Gene) string      { return nameOr(classNames, g) }
func ProfessionName(g Gene) string { return nameOr(professionNames, g) }
func ElementName(g Gene) string    { return nameOr(elementNames, g) }
func StatName(g Gene) string       { return nameOr(statNames, g) }

func nameOr(table map[Gene]string, g Gene) string {
	if n, ok := table[g]; ok {
		return n
	}
	return fmt.Sprintf("Unknown(%d)", int(g))
}

// Trait slot order within a decoded gene string, most significant group first.

var statSlots = []string{
	"class", "subClass", "profession",
	"passive1", "passive2", "active1", "active2",
	"statBoost1", "statBoost2", "statsUnknown1",
	"element", "statsUnknown2",
}

var visualSlots = []string{
	"gender", "headAppendage", "backAppendage", "background",
	"hairStyle", "hairColor", "visualUnknown1", "eyeColor",
	"skinColor", "appendageColor", "backAppendageColor", "visualUnknown2",
}

// StatSlots returns the stat trait slot names in decode order.
func StatSlots() []string { return append([]string(nil), statSlots...) }

// VisualSlots returns the visual trait slot names in decode order.
func VisualSlots() []string { return append([]string(nil), visualSlots...) }
