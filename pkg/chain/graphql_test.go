package chain

import (
	"encoding/json"
	"testing"
)

func TestHeroPetBonusMapping(t *testing.T) {
	cases := []struct {
		name string
		pet  string
		want int
	}{
		{"gardening pet", `{"id":"9","profession":"gardening","profBonus":40}`, 40},
		{"foraging pet", `{"id":"9","profession":"foraging","profBonus":40}`, 0},
		{"no pet", `null`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blob := `{"id":"77","owner":{"id":"0xAB"},"level":4,"stamina":20,"gardening":107,"currentQuest":"0x0","equippedPet":` + tc.pet + `}`
			var r rawHero
			if err := json.Unmarshal([]byte(blob), &r); err != nil {
				t.Fatal(err)
			}
			h := r.toHero()
			if h.PetBonus != tc.want {
				t.Errorf("PetBonus = %d, want %d", h.PetBonus, tc.want)
			}
			if h.ID != 77 || h.Owner != "0xab" {
				t.Errorf("hero = %d/%s, base fields must survive the pet mapping", h.ID, h.Owner)
			}
		})
	}
}
