package model

// ExamPaper is the response of GET /exam/{user}/ on the remote gateway.
// Options arrive keyed by label; Penalties carries any deductions already
// recorded server-side for this attempt.
type ExamPaper struct {
	Questions []PaperQuestion `json:"questions"`
	Timer     int             `json:"timer"`
}

// PaperQuestion is a single question as delivered by the gateway.
type PaperQuestion struct {
	ID        int               `json:"id"`
	Text      string            `json:"text"`
	Options   map[string]string `json:"options"`
	ImageURL  string            `json:"image_url"`
	Penalties int               `json:"penalties"`
}

// LoginRequest is the body of POST /login/ on the remote gateway.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the credential pair issued on successful sign-in.
type LoginResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	Username string `json:"username"`
}
