package drug

// RequiredFields are the fields a label must show to count as complete.
var RequiredFields = []Field{FieldName, FieldDosage, FieldUsage, FieldManufacturer}

// Validation summarizes how complete a recognized label is.
type Validation struct {
	CompletenessScore float64  `json:"completeness_score"`
	PresentFields     []string `json:"present_fields"`
	MissingFields     []string `json:"missing_fields"`
	NeedRetake        bool     `json:"need_retake"`
	IsComplete        bool     `json:"is_complete"`
}

// Validate scores a DrugInfo against RequiredFields.
// Below 50% the photo should be retaken; 75% and above counts as complete.
func Validate(info *DrugInfo) *Validation {
	v := &Validation{
		PresentFields: []string{},
		MissingFields: []string{},
	}
	for _, f := range RequiredFields {
		if info.Get(f) != "" {
			v.PresentFields = append(v.PresentFields, string(f))
		} else {
			v.MissingFields = append(v.MissingFields, string(f))
		}
	}
	v.CompletenessScore = float64(len(v.PresentFields)) / float64(len(RequiredFields)) * 100
	v.NeedRetake = v.CompletenessScore < 50
	v.IsComplete = v.CompletenessScore >= 75
	return v
}
