// Package cells holds the grid cell record model and the dataset built from it.
package cells

import "strings"

// Field identifies one numeric column of a cell record.
type Field int

// Raw socioeconomic counts.
const (
	FieldInd Field = iota
	FieldMen
	FieldMenPauv
	FieldMen1Ind
	FieldMen5Ind
	FieldMenProp
	FieldMenFmp
	FieldIndSnv
	FieldMenSurf
	FieldMenColl
	FieldMenMais
	FieldLogAv45
	FieldLog4570
	FieldLog7090
	FieldLogAp90
	FieldLogInc
	FieldLogSoc

	// Min-max normalized counterparts.
	FieldIndN
	FieldMenN
	FieldMenPauvN
	FieldMen1IndN
	FieldMen5IndN
	FieldMenPropN
	FieldMenFmpN
	FieldIndSnvN
	FieldMenSurfN
	FieldMenCollN
	FieldMenMaisN
	FieldLogAv45N
	FieldLog4570N
	FieldLog7090N
	FieldLogAp90N
	FieldLogIncN
	FieldLogSocN

	// Composite indices.
	FieldEWB
	FieldSSI
	FieldSAI
	FieldSAVI
	FieldSCV
	FieldTPI
	FieldEVUL
	FieldGAI
	FieldEWBN
	FieldSSIN
	FieldSAIN
	FieldSAVIN
	FieldSCVN
	FieldTPIN
	FieldEVULN
	FieldGAIN

	// Infrastructure counts.
	FieldNbrServ
	FieldNbrAll
	FieldNbrPark
	FieldNbrArce
	FieldNbrBorn
	FieldNbrArre
	FieldLongPis
	FieldBatNomb
	FieldNbrArceN
	FieldNbrBornN
	FieldNbrArreN
	FieldLongPisN

	// Distances to the nearest facility.
	FieldDisServ
	FieldDisAllp
	FieldDisVpar
	FieldDisArce
	FieldDisBorn
	FieldDisArre
	FieldDisPist

	numFields
)

// NumFields is the size of the closed field set.
const NumFields = int(numFields)

var fieldNames = [numFields]string{
	FieldInd:      "ind",
	FieldMen:      "men",
	FieldMenPauv:  "men_pauv",
	FieldMen1Ind:  "men_1ind",
	FieldMen5Ind:  "men_5ind",
	FieldMenProp:  "men_prop",
	FieldMenFmp:   "men_fmp",
	FieldIndSnv:   "ind_snv",
	FieldMenSurf:  "men_surf",
	FieldMenColl:  "men_coll",
	FieldMenMais:  "men_mais",
	FieldLogAv45:  "log_av45",
	FieldLog4570:  "log_45_70",
	FieldLog7090:  "log_70_90",
	FieldLogAp90:  "log_ap90",
	FieldLogInc:   "log_inc",
	FieldLogSoc:   "log_soc",
	FieldIndN:     "ind_n",
	FieldMenN:     "men_n",
	FieldMenPauvN: "men_pauv_n",
	FieldMen1IndN: "men_1ind_n",
	FieldMen5IndN: "men_5ind_n",
	FieldMenPropN: "men_prop_n",
	FieldMenFmpN:  "men_fmp_n",
	FieldIndSnvN:  "ind_snv_n",
	FieldMenSurfN: "men_surf_n",
	FieldMenCollN: "men_coll_n",
	FieldMenMaisN: "men_mais_n",
	FieldLogAv45N: "log_av45_n",
	FieldLog4570N: "log_45_70_n",
	FieldLog7090N: "log_70_90_n",
	FieldLogAp90N: "log_ap90_n",
	FieldLogIncN:  "log_inc_n",
	FieldLogSocN:  "log_soc_n",
	FieldEWB:      "EWB",
	FieldSSI:      "SSI",
	FieldSAI:      "SAI",
	FieldSAVI:     "SAVI",
	FieldSCV:      "SCV",
	FieldTPI:      "TPI",
	FieldEVUL:     "EVUL",
	FieldGAI:      "GAI",
	FieldEWBN:     "EWB_n",
	FieldSSIN:     "SSI_n",
	FieldSAIN:     "SAI_n",
	FieldSAVIN:    "SAVI_n",
	FieldSCVN:     "SCV_n",
	FieldTPIN:     "TPI_n",
	FieldEVULN:    "EVUL_n",
	FieldGAIN:     "GAI_n",
	FieldNbrServ:  "1_NBR_SERV",
	FieldNbrAll:   "2_NBR_ALL",
	FieldNbrPark:  "3_NBR_PARK",
	FieldNbrArce:  "4_NBR_ARCE",
	FieldNbrBorn:  "5_NBR_BORN",
	FieldNbrArre:  "6_NBR_ARRE",
	FieldLongPis:  "7_LONG_PIS",
	FieldBatNomb:  "8_BAT_Nomb",
	FieldNbrArceN: "4_NBR_AR_1",
	FieldNbrBornN: "5_NBR_BO_1",
	FieldNbrArreN: "6_NBR_AR_1",
	FieldLongPisN: "7_LONG_P_1",
	FieldDisServ:  "1_DIS_SERV",
	FieldDisAllp:  "2_DIS_ALLP",
	FieldDisVpar:  "3_DIS_VPAR",
	FieldDisArce:  "4_DIS_ARCE",
	FieldDisBorn:  "5_DIS_BORN",
	FieldDisArre:  "6_DIS_ARRE",
	FieldDisPist:  "7_DIS_PIST",
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, numFields)
	for f, name := range fieldNames {
		m[name] = Field(f)
	}
	return m
}()

// String returns the CSV column name of the field.
func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Valid reports whether f belongs to the closed field set.
func (f Field) Valid() bool {
	return f >= 0 && f < numFields
}

// ParseField resolves a column name to its field.
func ParseField(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// NormalizedSuffix marks min-max normalized columns.
const NormalizedSuffix = "_n"

// Index describes one of the eight composite indices.
type Index struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Raw        Field  `json:"-"`
	Normalized Field  `json:"-"`
}

// Indices lists the composite indices in radar-axis order.
var Indices = [8]Index{
	{Key: "EWB", Label: "Economic well-being", Raw: FieldEWB, Normalized: FieldEWBN},
	{Key: "SSI", Label: "Service stock", Raw: FieldSSI, Normalized: FieldSSIN},
	{Key: "SAI", Label: "Accessibility", Raw: FieldSAI, Normalized: FieldSAIN},
	{Key: "SAVI", Label: "Services", Raw: FieldSAVI, Normalized: FieldSAVIN},
	{Key: "SCV", Label: "Composite capacity", Raw: FieldSCV, Normalized: FieldSCVN},
	{Key: "TPI", Label: "Pressure/implantation", Raw: FieldTPI, Normalized: FieldTPIN},
	{Key: "EVUL", Label: "Vulnerability", Raw: FieldEVUL, Normalized: FieldEVULN},
	{Key: "GAI", Label: "Inverse adaptability", Raw: FieldGAI, Normalized: FieldGAIN},
}

// AxisLabel strips the normalization suffix from a normalized index column.
func AxisLabel(f Field) string {
	return strings.TrimSuffix(f.String(), NormalizedSuffix)
}

// Variable is an editable sidebar measure with its normalized column.
type Variable struct {
	Key        Field  `json:"-"`
	Label      string `json:"label"`
	Normalized Field  `json:"-"`
	Editable   bool   `json:"editable"`
}

// Variables lists the sidebar measures.
var Variables = []Variable{
	{Key: FieldMen, Label: "Households", Normalized: FieldMenN, Editable: true},
	{Key: FieldMenPauv, Label: "Vulnerable households", Normalized: FieldMenPauvN, Editable: true},
	{Key: FieldInd, Label: "Individuals", Normalized: FieldIndN, Editable: true},
	{Key: FieldNbrBorn, Label: "Charging stations", Normalized: FieldNbrBornN, Editable: true},
	{Key: FieldNbrArre, Label: "Transit stops", Normalized: FieldNbrArreN, Editable: true},
	{Key: FieldNbrArce, Label: "Bike racks", Normalized: FieldNbrArceN, Editable: true},
	{Key: FieldLongPis, Label: "Cycle lanes", Normalized: FieldLongPisN, Editable: true},
}

// LookupVariable returns the sidebar variable whose raw field is f.
func LookupVariable(f Field) (Variable, bool) {
	for _, v := range Variables {
		if v.Key == f {
			return v, true
		}
	}
	return Variable{}, false
}

// EquipmentFields are summed for the equipment details panel.
var EquipmentFields = []Field{FieldNbrBorn, FieldNbrArre, FieldNbrArce, FieldLongPis}
