// Package world provides the region model: resources, biomes, the fixed region
// table, and the single-writer delta that every simulation phase mutates through.
package world

import (
	"encoding/json"
	"fmt"
)

// Resource enumerates the four scarce resources every region holds.
type Resource uint8

const (
	Water  Resource = iota
	Food
	Energy
	Land
)

// NumResources is the number of resource kinds.
const NumResources = 4

// Resources lists every resource kind in canonical order.
var Resources = [NumResources]Resource{Water, Food, Energy, Land}

// Consumables are the resources affected by conserve, stockpile and balance.
var Consumables = [3]Resource{Water, Food, Energy}

var resourceNames = [NumResources]string{"water", "food", "energy", "land"}

// String returns the lowercase resource name.
func (r Resource) String() string {
	if int(r) < NumResources {
		return resourceNames[r]
	}
	return fmt.Sprintf("resource(%d)", uint8(r))
}

// MarshalText encodes the resource by name.
func (r Resource) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a resource name.
func (r *Resource) UnmarshalText(b []byte) error {
	v, err := ParseResource(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseResource returns the resource with the given name.
func ParseResource(name string) (Resource, error) {
	for i, n := range resourceNames {
		if n == name {
			return Resource(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resource %q", name)
}

// Amounts holds one float per resource kind, indexed by Resource.
// A fixed array keeps region state inline and iteration order stable.
type Amounts [NumResources]float64

// Map returns the amounts keyed by resource name, for serialization.
func (a Amounts) Map() map[string]float64 {
	m := make(map[string]float64, NumResources)
	for _, r := range Resources {
		m[r.String()] = a[r]
	}
	return m
}

// MarshalJSON encodes the amounts as an object keyed by resource name.
func (a Amounts) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Map())
}

// UnmarshalJSON decodes an object keyed by resource name. Missing keys are zero.
func (a *Amounts) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Amounts
	for name, v := range m {
		res, err := ParseResource(name)
		if err != nil {
			return err
		}
		out[res] = v
	}
	*a = out
	return nil
}

// Biome is a region's fixed climate/terrain profile.
type Biome uint8

const (
	BiomeTropical Biome = iota
	BiomeArid
	BiomeTemperate
	BiomeContinental
	BiomePolar
	BiomeCoastal
	BiomeMountainous
	BiomeRiverine
)

// NumBiomes is the number of biome variants.
const NumBiomes = 8

var biomeNames = [NumBiomes]string{
	"Tropical Rainforest",
	"Arid Desert",
	"Temperate Plains",
	"Continental Forest",
	"Polar Tundra",
	"Coastal Maritime",
	"Highland Mountains",
	"River Delta",
}

// String returns the display name of the biome.
func (b Biome) String() string {
	if int(b) < NumBiomes {
		return biomeNames[b]
	}
	return fmt.Sprintf("biome(%d)", uint8(b))
}

// MarshalText encodes the biome by display name.
func (b Biome) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a biome display name.
func (b *Biome) UnmarshalText(text []byte) error {
	for i, n := range biomeNames {
		if n == string(text) {
			*b = Biome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown biome %q", text)
}

// Position is a region's fixed 2D coordinate in the unit square.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
