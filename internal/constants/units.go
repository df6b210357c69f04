package constants

// Базы единиц измерения. Переводить можно только внутри одной базы.
const (
	BaseMass   = "mass"
	BaseLength = "length"
	BaseVolume = "volume"
	BaseCount  = "count"
	BaseTime   = "time"
)

type UnitDef struct {
	Base string
	// Factor — сколько базовых единиц (г, мм, мл, шт, мин) в одной единице.
	Factor string
}

var Units = map[string]UnitDef{
	"MG": {BaseMass, "0.001"},
	"G":  {BaseMass, "1"},
	"KG": {BaseMass, "1000"},
	"OZ": {BaseMass, "28.349523125"},
	"LB": {BaseMass, "453.59237"},

	"MM": {BaseLength, "1"},
	"CM": {BaseLength, "10"},
	"M":  {BaseLength, "1000"},
	"IN": {BaseLength, "25.4"},
	"FT": {BaseLength, "304.8"},

	"ML": {BaseVolume, "1"},
	"L":  {BaseVolume, "1000"},

	"EA":   {BaseCount, "1"},
	"PCS":  {BaseCount, "1"},
	"PC":   {BaseCount, "1"},
	"EACH": {BaseCount, "1"},
	"PAIR": {BaseCount, "2"},
	"DZ":   {BaseCount, "12"},

	"MIN": {BaseTime, "1"},
	"HR":  {BaseTime, "60"},
}

// алиасы, которые встречаются в импортированных справочниках
var UnitAliases = map[string]string{
	"GRAM":   "G",
	"GRAMS":  "G",
	"KILO":   "KG",
	"METER":  "M",
	"METERS": "M",
	"UNIT":   "EA",
	"UNITS":  "EA",
	"PIECE":  "PCS",
}
