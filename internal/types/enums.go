package types

// EnumValue is one selectable option of a static enumeration.
type EnumValue struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// UFs are the Brazilian federative units.
var UFs = []EnumValue{
	{"AC", "Acre"}, {"AL", "Alagoas"}, {"AP", "Amapá"}, {"AM", "Amazonas"},
	{"BA", "Bahia"}, {"CE", "Ceará"}, {"DF", "Distrito Federal"},
	{"ES", "Espírito Santo"}, {"GO", "Goiás"}, {"MA", "Maranhão"},
	{"MT", "Mato Grosso"}, {"MS", "Mato Grosso do Sul"}, {"MG", "Minas Gerais"},
	{"PA", "Pará"}, {"PB", "Paraíba"}, {"PR", "Paraná"}, {"PE", "Pernambuco"},
	{"PI", "Piauí"}, {"RJ", "Rio de Janeiro"}, {"RN", "Rio Grande do Norte"},
	{"RS", "Rio Grande do Sul"}, {"RO", "Rondônia"}, {"RR", "Roraima"},
	{"SC", "Santa Catarina"}, {"SP", "São Paulo"}, {"SE", "Sergipe"},
	{"TO", "Tocantins"},
}

// Periods are the income periods of a farming activity.
var Periods = []EnumValue{
	{"Diário", "Diário"},
	{"Semanal", "Semanal"},
	{"Quinzenal", "Quinzenal"},
	{"Mensal", "Mensal"},
	{"Semestral", "Semestral"},
	{"Anual", "Anual"},
}

// Profiles are the selectable user roles.
var Profiles = []EnumValue{
	{RoleAdmin.String(), "Administrador"},
	{RoleTechnician.String(), "Técnico"},
}

// Enums maps enumeration names, as referenced by form definitions, to values.
var Enums = map[string][]EnumValue{
	"ufs":      UFs,
	"periods":  Periods,
	"profiles": Profiles,
}

// EnumValues returns the raw values of a named enumeration.
func EnumValues(name string) []string {
	vals := Enums[name]
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.Value
	}
	return out
}
