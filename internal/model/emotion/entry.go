package emotion

// Entry pairs an emotion label with its coping suggestion and the reason it helps.
type Entry struct {
	Emotion              string `json:"emotion"`
	SuggestedAction      string `json:"suggestedAction"`
	PsychologicalInsight string `json:"psychologicalInsight"`
}

// Placeholder is the dropdown option that stands for "nothing chosen yet".
const Placeholder = "Choose..."
