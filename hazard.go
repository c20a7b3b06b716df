package hazardwatch

// HazardClass names a category of detectable risk.
type HazardClass string

// Hazard classes the default detection model is trained on, in label
// file order.
const (
	OilLeak         HazardClass = "oil_leak"
	GasLeak         HazardClass = "gas_leak"
	Fire            HazardClass = "fire"
	Smoke           HazardClass = "smoke"
	ChemicalSpill   HazardClass = "chemical_spill"
	SafetyEquipment HazardClass = "safety_equipment"
	Worker          HazardClass = "worker"
	Vehicle         HazardClass = "vehicle"
	PipeDamage      HazardClass = "pipe_damage"
	Corrosion       HazardClass = "corrosion"
)

// DefaultLabels maps the model's class indices to hazard classes. The
// slice index corresponds to the line number in the labels file the
// model was trained on.
var DefaultLabels = []HazardClass{
	OilLeak,
	GasLeak,
	Fire,
	Smoke,
	ChemicalSpill,
	SafetyEquipment,
	Worker,
	Vehicle,
	PipeDamage,
	Corrosion,
}
