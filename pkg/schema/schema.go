package schema

import "strconv"

// Field describes one input dimension accepted by the prediction service.
type Field struct {
	Name        string
	Label       string
	Description string
	Unit        string
	Min         float64
	Max         float64
	Step        float64
}

// Schema is an ordered, immutable list of fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

const defaultStep = 0.1

// New builds a schema from the given fields. Duplicate names keep the first occurrence.
func New(fields ...Field) Schema {
	s := Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			continue
		}
		if f.Step <= 0 {
			f.Step = defaultStep
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Fields returns a copy of the fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f.Name)
	}
	return out
}

func (s Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s Schema) Len() int { return len(s.fields) }

// Contains reports whether v lies within the inclusive bounds of f.
func (f Field) Contains(v float64) bool {
	return v >= f.Min && v <= f.Max
}

// FormatNumber renders a float without trailing zeros (67.1, 0.078, 200).
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Default field names, in the order the model was trained on.
const (
	Pregnancies              = "Pregnancies"
	Glucose                  = "Glucose"
	BloodPressure            = "BloodPressure"
	SkinThickness            = "SkinThickness"
	Insulin                  = "Insulin"
	BMI                      = "BMI"
	DiabetesPedigreeFunction = "DiabetesPedigreeFunction"
	Age                      = "Age"
)

var defaultSchema = New(
	Field{Name: Pregnancies, Label: "Number of Pregnancies", Description: "Number of times pregnant", Min: 0, Max: 17},
	Field{Name: Glucose, Label: "Glucose Level", Description: "Plasma glucose concentration (2 hours in oral glucose tolerance test)", Unit: "mg/dL", Min: 0, Max: 200},
	Field{Name: BloodPressure, Label: "Blood Pressure", Description: "Diastolic blood pressure", Unit: "mm Hg", Min: 0, Max: 122},
	Field{Name: SkinThickness, Label: "Skin Thickness", Description: "Triceps skin fold thickness", Unit: "mm", Min: 0, Max: 99},
	Field{Name: Insulin, Label: "Insulin Level", Description: "2-Hour serum insulin", Unit: "μU/mL", Min: 0, Max: 846},
	Field{Name: BMI, Label: "Body Mass Index (BMI)", Description: "Body mass index (weight in kg/(height in m)²)", Unit: "kg/m²", Min: 0, Max: 67.1},
	Field{Name: DiabetesPedigreeFunction, Label: "Diabetes Pedigree Function", Description: "Diabetes pedigree function (genetic influence)", Min: 0.078, Max: 2.42, Step: 0.001},
	Field{Name: Age, Label: "Age", Description: "Age in years", Unit: "years", Min: 21, Max: 81, Step: 1},
)

// Default returns the eight-field diabetes schema.
func Default() Schema { return defaultSchema }
