package domain

// UploadedImage is a file received from a client and held on disk for the
// duration of a single analysis request.
type UploadedImage struct {
	Path     string `json:"-"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type AnalysisResult struct {
	Result string `json:"result"`
	Image  string `json:"image"`
}

type ReportRequest struct {
	Result string `json:"result"`
	Image  string `json:"image,omitempty"`
}

// Report is a generated PDF on disk. It lives until it has been streamed.
type Report struct {
	Path     string
	Filename string
	Size     int64
	State    ReportState
}
