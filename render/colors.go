package render

import (
	"image/color"

	hazardwatch "github.com/seefeld/go-hazardwatch"
)

var (
	// hazardColors maps each hazard class to the color used for its boxes
	// and labels
	hazardColors = map[hazardwatch.HazardClass]color.RGBA{
		hazardwatch.OilLeak:         {R: 255, G: 0, B: 0, A: 255},     // red
		hazardwatch.GasLeak:         {R: 255, G: 255, B: 0, A: 255},   // yellow
		hazardwatch.Fire:            {R: 255, G: 69, B: 0, A: 255},    // orange
		hazardwatch.Smoke:           {R: 128, G: 128, B: 128, A: 255}, // gray
		hazardwatch.ChemicalSpill:   {R: 255, G: 0, B: 255, A: 255},   // magenta
		hazardwatch.SafetyEquipment: {R: 0, G: 255, B: 0, A: 255},     // green
		hazardwatch.Worker:          {R: 0, G: 255, B: 255, A: 255},   // cyan
		hazardwatch.Vehicle:         {R: 0, G: 0, B: 255, A: 255},     // blue
		hazardwatch.PipeDamage:      {R: 255, G: 165, B: 0, A: 255},   // orange
		hazardwatch.Corrosion:       {R: 165, G: 42, B: 42, A: 255},   // brown
	}

	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ClassColor returns the drawing color for a hazard class. Unknown classes
// render white.
func ClassColor(class hazardwatch.HazardClass) color.RGBA {

	if clr, ok := hazardColors[class]; ok {
		return clr
	}

	return White
}
