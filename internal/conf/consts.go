// conf/consts.go shared domain constants.
package conf

// Sign category labels as stored on sign definitions and submissions.
// The values keep the original catalog's Spanish vocabulary since the
// recorded data already uses them.
const (
	SignTypeCharacter = "Caracter"
	SignTypeWord      = "Palabra"
	SignTypePhrase    = "Frases"
)

// Catalog activation states.
const (
	SignStatusActive   = "activo"
	SignStatusInactive = "inactivo"
)

// SignTypeForID maps the numeric category selector used by the catalog
// forms to its label.
func SignTypeForID(typeID int) string {
	switch typeID {
	case 1:
		return SignTypeCharacter
	case 2:
		return SignTypeWord
	case 3:
		return SignTypePhrase
	default:
		return ""
	}
}

// Proficiency level bounds for contributor profiles.
const (
	MinProficiencyLevel = 1
	MaxProficiencyLevel = 3
)
