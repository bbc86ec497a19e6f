// Package puzzles derives each room's puzzle variants from its seed and
// checks submitted answers against them.
package puzzles

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/cbodonnell/pyramid/pkg/game/types"
)

const (
	Cartouche  = "cartouche"
	Nilometer  = "nilometer"
	Stars      = "stars"
	Canopic    = "canopic"
	Trade      = "trade"
	SwordTrial = "sword_trial"
)

// Variant is the client-facing description of a puzzle instance, answer
// fields included.
type Variant map[string]interface{}

// Checker is a pure function of (seed, puzzle, answer).
type Checker interface {
	Variant(seed int64, puzzleKey string) (Variant, error)
	Check(seed int64, puzzleKey string, answer json.RawMessage) (bool, error)
}

type puzzle struct {
	variant func(rng *rand.Rand) Variant
	check   func(v Variant, answer json.RawMessage) (bool, error)
}

type Catalog struct {
	puzzles map[string]puzzle
}

var _ Checker = &Catalog{}

func NewCatalog() *Catalog {
	return &Catalog{
		puzzles: map[string]puzzle{
			Cartouche:  {variant: cartoucheVariant, check: checkString("name")},
			Nilometer:  {variant: nilometerVariant, check: checkCubits},
			Stars:      {variant: starsVariant, check: checkString("direction")},
			Canopic:    {variant: canopicVariant, check: checkMapping},
			Trade:      {variant: tradeVariant, check: checkMapping},
			SwordTrial: {variant: swordVariant, check: checkString("word")},
		},
	}
}

// Keys returns the puzzle keys the catalog knows.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.puzzles))
	for k := range c.puzzles {
		keys = append(keys, k)
	}
	return keys
}

func rngFor(seed int64, puzzleKey string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(puzzleKey))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}

func (c *Catalog) Variant(seed int64, puzzleKey string) (Variant, error) {
	p, ok := c.puzzles[puzzleKey]
	if !ok {
		return nil, types.InvalidArgument("unknown puzzle %s", puzzleKey)
	}
	return p.variant(rngFor(seed, puzzleKey)), nil
}

func (c *Catalog) Check(seed int64, puzzleKey string, answer json.RawMessage) (bool, error) {
	p, ok := c.puzzles[puzzleKey]
	if !ok {
		return false, types.InvalidArgument("unknown puzzle %s", puzzleKey)
	}
	if len(answer) == 0 {
		return false, types.InvalidArgument("answer is empty")
	}
	return p.check(p.variant(rngFor(seed, puzzleKey)), answer)
}

var cartoucheNames = []string{"KHUFU", "KHAFRE", "MENKAURE", "NARMER", "HATSHEPSUT", "RAMSES"}

func cartoucheVariant(rng *rand.Rand) Variant {
	return Variant{"name": cartoucheNames[rng.Intn(len(cartoucheNames))]}
}

func nilometerVariant(rng *rand.Rand) Variant {
	// A good flood read between 12 and 18 cubits.
	return Variant{"target_cubits": 12 + rng.Intn(7)}
}

var starDirections = []string{"north", "east", "south", "west"}

func starsVariant(rng *rand.Rand) Variant {
	return Variant{"direction": starDirections[rng.Intn(len(starDirections))]}
}

var canopicMapping = map[string]string{
	"Imsety":      "liver",
	"Hapi":        "lungs",
	"Duamutef":    "stomach",
	"Qebehsenuef": "intestines",
}

func canopicVariant(rng *rand.Rand) Variant {
	return mappingVariant(rng, canopicMapping, []string{"Imsety", "Hapi", "Duamutef", "Qebehsenuef"})
}

var tradeMapping = map[string]string{
	"cedar":   "Byblos",
	"incense": "Punt",
	"gold":    "Nubia",
	"copper":  "Sinai",
}

func tradeVariant(rng *rand.Rand) Variant {
	return mappingVariant(rng, tradeMapping, []string{"cedar", "incense", "gold", "copper"})
}

// mappingVariant shuffles the presentation order only; the mapping is fixed.
func mappingVariant(rng *rand.Rand, mapping map[string]string, keys []string) Variant {
	order := append([]string(nil), keys...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return Variant{"order": order, "mapping": m}
}

func swordVariant(rng *rand.Rand) Variant {
	return Variant{"word": "KHOPESH"}
}

func decodeAnswer(answer json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(answer, v); err != nil {
		return types.InvalidArgument("malformed answer: %v", err)
	}
	return nil
}

func checkString(field string) func(Variant, json.RawMessage) (bool, error) {
	return func(v Variant, answer json.RawMessage) (bool, error) {
		var a map[string]interface{}
		if err := decodeAnswer(answer, &a); err != nil {
			return false, err
		}
		got, ok := a[field].(string)
		if !ok {
			return false, types.InvalidArgument("answer needs a string %s", field)
		}
		want := fmt.Sprint(v[field])
		return strings.EqualFold(strings.TrimSpace(got), want), nil
	}
}

func checkCubits(v Variant, answer json.RawMessage) (bool, error) {
	var a struct {
		Cubits *int `json:"cubits"`
	}
	if err := decodeAnswer(answer, &a); err != nil {
		return false, err
	}
	if a.Cubits == nil {
		return false, types.InvalidArgument("answer needs cubits")
	}
	return *a.Cubits == v["target_cubits"].(int), nil
}

func checkMapping(v Variant, answer json.RawMessage) (bool, error) {
	var a struct {
		Mapping map[string]string `json:"mapping"`
	}
	if err := decodeAnswer(answer, &a); err != nil {
		return false, err
	}
	if a.Mapping == nil {
		return false, types.InvalidArgument("answer needs a mapping")
	}
	want := v["mapping"].(map[string]string)
	if len(a.Mapping) != len(want) {
		return false, nil
	}
	for k, w := range want {
		if !strings.EqualFold(a.Mapping[k], w) {
			return false, nil
		}
	}
	return true, nil
}
