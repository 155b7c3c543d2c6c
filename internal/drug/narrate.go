package drug

import "strings"

// locale holds the wording for one narration language.
type locale struct {
	labels      map[Field]string
	labelSep    string
	partSep     string
	summarySep  string
	prefix      string
	suffix      string
	empty       string
	sampleNote  string
	sentenceEnd string
}

var locales = map[string]locale{
	"en": {
		labels: map[Field]string{
			FieldName:         "Drug name",
			FieldDosage:       "Dosage",
			FieldUsage:        "Usage",
			FieldManufacturer: "Manufacturer",
			FieldExpiryDate:   "Expiry date",
			FieldBatchNumber:  "Batch number",
			FieldStorage:      "Storage",
		},
		labelSep:    ": ",
		partSep:     ". ",
		summarySep:  "; ",
		prefix:      "Recognition succeeded. ",
		suffix:      " Please use as directed by your physician.",
		empty:       "No drug information recognized.",
		sampleNote:  "Sample data, not read from your label. ",
		sentenceEnd: ".",
	},
	"zh": {
		labels: map[Field]string{
			FieldName:         "药品名称",
			FieldDosage:       "用法用量",
			FieldUsage:        "使用方法",
			FieldManufacturer: "生产厂家",
			FieldExpiryDate:   "有效期",
			FieldBatchNumber:  "批号",
			FieldStorage:      "贮藏",
		},
		labelSep:    "：",
		partSep:     "。",
		summarySep:  "；",
		prefix:      "识别成功。",
		suffix:      "请遵医嘱使用。",
		empty:       "未识别到药品信息",
		sampleNote:  "示例数据，并非来自您的药品标签。",
		sentenceEnd: "。",
	},
}

func lookupLocale(name string) locale {
	if l, ok := locales[name]; ok {
		return l
	}
	return locales["en"]
}

// Label returns the display label for a field in the given locale.
func Label(f Field, localeName string) string {
	return lookupLocale(localeName).labels[f]
}

// Narrate builds the spoken sentence for a DrugInfo. Present fields are read in
// FieldOrder as "label: value" parts; an empty DrugInfo yields the
// "not recognized" narration instead.
func Narrate(info *DrugInfo, localeName string) string {
	l := lookupLocale(localeName)
	present := info.Present()
	if len(present) == 0 {
		return l.empty
	}

	parts := make([]string, 0, len(present))
	for _, fv := range present {
		parts = append(parts, l.labels[fv.Field]+l.labelSep+fv.Value)
	}

	var sb strings.Builder
	sb.WriteString(l.prefix)
	sb.WriteString(strings.Join(parts, l.partSep))
	sb.WriteString(l.sentenceEnd)
	sb.WriteString(l.suffix)
	return sb.String()
}

// Summary is the single-line display text: "label: value" pairs joined by
// the locale's list separator.
func Summary(info *DrugInfo, localeName string) string {
	l := lookupLocale(localeName)
	present := info.Present()
	parts := make([]string, 0, len(present))
	for _, fv := range present {
		parts = append(parts, l.labels[fv.Field]+l.labelSep+fv.Value)
	}
	return strings.Join(parts, l.summarySep)
}

// EmptyNarration returns the "not recognized" sentence for a locale.
func EmptyNarration(localeName string) string {
	return lookupLocale(localeName).empty
}
