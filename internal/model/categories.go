package model

// NumCategories is the size of the fixed category taxonomy.
const NumCategories = 6

// CategoryNames maps category ids to their display names.
var CategoryNames = map[int]string{
	1: "Foundation Models & Architecture",
	2: "Training & Tuning",
	3: "Application Engineering",
	4: "Infrastructure & Inference Optimization",
	5: "Evaluation & Safety",
	6: "Regulation & Business",
}

// CategoryName returns the display name for a category id, or "unknown"
// for ids outside the taxonomy.
func CategoryName(id int) string {
	if name, ok := CategoryNames[id]; ok {
		return name
	}
	return "unknown"
}
