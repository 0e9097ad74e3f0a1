package entity

// Prediction is the decoded classifier output for one frame.
type Prediction struct {
	Label      string  `json:"predicted_label"`
	Confidence float32 `json:"confidence"`
	Index      int     `json:"-"`
}
