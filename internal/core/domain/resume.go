package domain

// ResumeRecord is the durable per-resume unit stored under "resume:<id>".
// ResumePath, ImagePath and Feedback are only ever written together.
type ResumeRecord struct {
	ID             string    `json:"id"`
	ResumePath     string    `json:"resumePath"`
	ImagePath      string    `json:"imagePath"`
	CompanyName    string    `json:"companyName"`
	JobTitle       string    `json:"jobTitle"`
	JobDescription string    `json:"jobDescription"`
	Feedback       *Feedback `json:"feedback,omitempty"`
}

// JobContext is the job information carried across analyses of a resume.
type JobContext struct {
	CompanyName    string `json:"companyName"`
	JobTitle       string `json:"jobTitle"`
	JobDescription string `json:"jobDescription"`
}

func (r *ResumeRecord) JobContext() JobContext {
	return JobContext{
		CompanyName:    r.CompanyName,
		JobTitle:       r.JobTitle,
		JobDescription: r.JobDescription,
	}
}

// SourceDocument is a user-selected PDF held in memory.
type SourceDocument struct {
	Filename string
	Data     []byte
}

// ResumeView is a record together with the bytes of its artifacts.
type ResumeView struct {
	Record   ResumeRecord
	Document []byte
	Image    []byte
}
