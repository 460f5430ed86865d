package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

// seedPanel mirrors solar.PanelModel with YAML keys. JSON seed files parse too,
// since JSON is valid YAML.
type seedPanel struct {
	ID              string  `yaml:"id"`
	Brand           string  `yaml:"brand"`
	Model           string  `yaml:"model"`
	RatedPowerWatts float64 `yaml:"ratedPowerWatts"`
	UnitPrice       float64 `yaml:"unitPrice"`
	Vmp             float64 `yaml:"vmp"`
	Imp             float64 `yaml:"imp"`
	Voc             float64 `yaml:"voc"`
	Isc             float64 `yaml:"isc"`
	EfficiencyPct   float64 `yaml:"efficiencyPct"`
	WeightKg        float64 `yaml:"weightKg"`
	Dimensions      string  `yaml:"dimensions"`
	ImageURL        string  `yaml:"imageUrl"`
}

// LoadPanelsFromFile reads a YAML or JSON list of panels.
func LoadPanelsFromFile(path string) ([]solar.PanelModel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read panels file: %w", err)
	}
	return ParsePanels(b)
}

// ParsePanels decodes a YAML or JSON list of panels.
func ParsePanels(b []byte) ([]solar.PanelModel, error) {
	var seeds []seedPanel
	if err := yaml.Unmarshal(b, &seeds); err != nil {
		return nil, fmt.Errorf("unmarshal panels: %w", err)
	}

	out := make([]solar.PanelModel, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, solar.PanelModel{
			ID:              s.ID,
			Brand:           s.Brand,
			Model:           s.Model,
			RatedPowerWatts: s.RatedPowerWatts,
			UnitPrice:       s.UnitPrice,
			Vmp:             s.Vmp,
			Imp:             s.Imp,
			Voc:             s.Voc,
			Isc:             s.Isc,
			EfficiencyPct:   s.EfficiencyPct,
			WeightKg:        s.WeightKg,
			Dimensions:      s.Dimensions,
			ImageURL:        s.ImageURL,
		})
	}
	return out, nil
}

type seedEquipment struct {
	ID            string  `yaml:"id"`
	Kind          string  `yaml:"kind"`
	Name          string  `yaml:"name"`
	Brand         string  `yaml:"brand"`
	Model         string  `yaml:"model"`
	Type          string  `yaml:"type"`
	UnitPrice     float64 `yaml:"unitPrice"`
	PowerWatts    float64 `yaml:"powerWatts"`
	EfficiencyPct float64 `yaml:"efficiencyPct"`
	CapacityKwh   float64 `yaml:"capacityKwh"`
	VoltageV      float64 `yaml:"voltageV"`
	Material      string  `yaml:"material"`
	Rating        string  `yaml:"rating"`
	ImageURL      string  `yaml:"imageUrl"`
}

// LoadEquipmentFromFile reads a YAML or JSON list of inverters, batteries,
// structures, cables and protections, each tagged with its kind.
func LoadEquipmentFromFile(path string) ([]solar.Equipment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read equipment file: %w", err)
	}
	return ParseEquipment(b)
}

// ParseEquipment decodes a YAML or JSON list of equipment items.
func ParseEquipment(b []byte) ([]solar.Equipment, error) {
	var seeds []seedEquipment
	if err := yaml.Unmarshal(b, &seeds); err != nil {
		return nil, fmt.Errorf("unmarshal equipment: %w", err)
	}

	out := make([]solar.Equipment, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, solar.Equipment{
			ID:            s.ID,
			Kind:          solar.EquipmentKind(s.Kind),
			Name:          s.Name,
			Brand:         s.Brand,
			Model:         s.Model,
			Type:          s.Type,
			UnitPrice:     s.UnitPrice,
			PowerWatts:    s.PowerWatts,
			EfficiencyPct: s.EfficiencyPct,
			CapacityKwh:   s.CapacityKwh,
			VoltageV:      s.VoltageV,
			Material:      s.Material,
			Rating:        s.Rating,
			ImageURL:      s.ImageURL,
		})
	}
	return out, nil
}
