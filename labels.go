package main

// LabelMap maps an anonymous response label (e.g. "Response A") to the
// model that produced it. Built once per turn, read-only afterwards,
// and never shown to the judges - only the aggregator de-anonymizes.
type LabelMap map[string]string

// LabeledResponse pairs an anonymous label with the response text shown
// to the judges.
type LabeledResponse struct {
	Label string
	Text  string
}

// AssignLabels anonymizes the successful subset of Stage 1 responses.
// Failed responses are excluded - a model that produced nothing cannot
// be ranked. Labels are assigned positionally over the successful list
// (first successful response in council order gets the first label), so
// the mapping is a pure function of that list's order and carries no
// trace of model identity.
func AssignLabels(stage1 []Stage1Response) ([]LabeledResponse, LabelMap) {
	labelToModel := make(LabelMap)
	var labeled []LabeledResponse

	i := 0
	for _, result := range stage1 {
		if !result.OK() {
			continue
		}
		label := responseLabel(i)
		labelToModel[label] = result.Model
		labeled = append(labeled, LabeledResponse{Label: label, Text: result.Response})
		i++
	}

	return labeled, labelToModel
}

// responseLabel returns the label for the i-th successful response:
// "Response A".."Response Z", then "Response AA", "Response AB", ...
func responseLabel(i int) string {
	letters := ""
	for n := i; ; n = n/26 - 1 {
		letters = string(rune('A'+n%26)) + letters
		if n < 26 {
			break
		}
	}
	return "Response " + letters
}
