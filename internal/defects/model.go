package defects

// Defect is one extracted finding. In the enum schema variant Defect holds a
// reference key; in the text variant it is a short free-form description.
type Defect struct {
	SourceText string `json:"source_text"`
	Room       string `json:"room"`
	Location   string `json:"location"`
	Defect     string `json:"defect"`
	WorkType   string `json:"work_type"`
}

// AnalysisResult is the wrapper object the model returns.
type AnalysisResult struct {
	Defects []Defect `json:"defects"`
}

// DefectDisplay resolves the defect field for the report: reference keys map
// to their Russian names, anything else passes through untouched.
func (d Defect) DefectDisplay() string {
	if name, ok := DisplayName(d.Defect); ok {
		return name
	}
	return d.Defect
}
