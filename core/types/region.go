package types

// Region groups countries that share default fuel and toll tables
type Region string

const (
	RegionEU    Region = "EU"
	RegionOther Region = "OTHER"
)

var euMembers = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true,
	"CZ": true, "DK": true, "EE": true, "FI": true, "FR": true,
	"DE": true, "GR": true, "HU": true, "IE": true, "IT": true,
	"LV": true, "LT": true, "LU": true, "MT": true, "NL": true,
	"PL": true, "PT": true, "RO": true, "SK": true, "SI": true,
	"ES": true, "SE": true,
}

// RegionOf maps an ISO country code to its default-rate region
func RegionOf(country string) Region {
	if euMembers[country] {
		return RegionEU
	}
	return RegionOther
}
