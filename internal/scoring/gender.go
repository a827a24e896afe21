package scoring

import "strings"

// Gender is the outcome of a historical-given-name lookup, used only to
// disambiguate which of two extracted parent names is the father and
// which is the mother when a source gives no explicit gender markup.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// femaleGivenNames and maleGivenNames are curated sets of historical
// English given names, grounded on
// original_source/extraction/familysearch_extractor.py's _detect_gender.
var femaleGivenNames = map[string]bool{
	"mary": true, "anna": true, "anne": true, "ann": true, "elizabeth": true,
	"margaret": true, "sarah": true, "jane": true, "catherine": true,
	"katherine": true, "kate": true, "maria": true, "marie": true,
	"martha": true, "ellen": true, "helen": true, "emma": true, "alice": true,
	"agnes": true, "janet": true, "jean": true, "joan": true, "julia": true,
	"harriet": true, "hannah": true, "grace": true, "frances": true,
	"florence": true, "dorothy": true, "edith": true, "eliza": true,
	"emily": true, "eva": true, "evelyn": true, "fanny": true, "gertrude": true,
	"ida": true, "irene": true, "isabelle": true, "isabel": true,
	"josephine": true, "laura": true, "lillian": true, "louise": true,
	"lucy": true, "mabel": true, "mildred": true, "minnie": true, "nancy": true,
	"nellie": true, "olive": true, "pearl": true, "rachel": true,
	"rebecca": true, "rosa": true, "rose": true, "ruth": true, "sophia": true,
	"susan": true, "susanna": true, "virginia": true, "winifred": true,
	"annie": true, "bessie": true, "clara": true, "cora": true, "dora": true,
	"effie": true, "ella": true, "elsie": true, "esther": true, "ethel": true,
	"fannie": true, "flora": true, "hattie": true, "henrietta": true,
	"hilda": true, "jennie": true, "jessie": true, "katie": true, "lena": true,
	"lottie": true, "louisa": true, "lydia": true, "maggie": true,
	"mamie": true, "mattie": true, "maude": true, "may": true, "nora": true,
	"sadie": true, "sallie": true, "stella": true, "theresa": true,
	"viola": true, "willie": true, "clementine": true, "euphemia": true,
	"marion": true, "jeanne": true,
}

var maleGivenNames = map[string]bool{
	"john": true, "william": true, "james": true, "george": true,
	"charles": true, "thomas": true, "henry": true, "robert": true,
	"joseph": true, "edward": true, "frank": true, "samuel": true,
	"david": true, "richard": true, "michael": true, "daniel": true,
	"peter": true, "paul": true, "andrew": true, "benjamin": true,
	"jacob": true, "isaac": true, "abraham": true, "albert": true,
	"alfred": true, "arthur": true, "carl": true, "clarence": true,
	"earl": true, "ernest": true, "eugene": true, "frederick": true,
	"harold": true, "harry": true, "herbert": true, "howard": true,
	"hugh": true, "jesse": true, "lewis": true, "louis": true, "martin": true,
	"matthew": true, "nathan": true, "oscar": true, "patrick": true,
	"philip": true, "ralph": true, "raymond": true, "roy": true,
	"stephen": true, "walter": true, "warren": true, "wm": true,
	"chas": true, "thos": true, "jas": true, "jno": true, "alex": true,
	"alexander": true,
}

// DetectGender infers the likely gender of fullName's first given name
// from the curated historical name sets. Unrecognized or empty names
// return GenderUnknown.
func DetectGender(fullName string) Gender {
	first := firstToken(fullName)
	if first == "" {
		return GenderUnknown
	}

	switch {
	case femaleGivenNames[first]:
		return GenderFemale
	case maleGivenNames[first]:
		return GenderMale
	default:
		return GenderUnknown
	}
}

func firstToken(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}

// AssignParents decides which of two extracted parent names is the
// father and which is the mother, using DetectGender to disambiguate.
// When genders differ, the male name is written to father and the female
// to mother. When both are unknown or agree, parent1 becomes father and
// parent2 becomes mother, preserving source order.
func AssignParents(parent1, parent2 string) (father, mother string) {
	gender1 := DetectGender(parent1)
	gender2 := DetectGender(parent2)

	switch {
	case gender1 == GenderFemale && gender2 != GenderFemale,
		gender1 != GenderMale && gender2 == GenderMale:
		return parent2, parent1
	default:
		return parent1, parent2
	}
}
