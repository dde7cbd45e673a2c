package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

const feedbackResponseFormat = `interface Feedback {
  overallScore: number; // max 100
  ATS: {
    score: number; // rate based on ATS suitability
    tips: { type: "good" | "improve"; tip: string }[]; // 3-4 tips
  };
  toneAndStyle: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[]; // 3-4 tips
  };
  content: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[];
  };
  structure: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[];
  };
  skills: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[];
  };
}`

// PromptBuilder formats analysis instructions for a job context.
type PromptBuilder struct{}

func NewPromptBuilder() PromptBuilder {
	return PromptBuilder{}
}

func (PromptBuilder) Build(job domain.JobContext) string {
	var b strings.Builder
	b.WriteString("You are an expert in ATS (Applicant Tracking System) and resume analysis.\n")
	b.WriteString("Analyze and rate the attached resume and suggest how to improve it.\n")
	b.WriteString("The rating can be low if the resume is bad. Be thorough and detailed; do not hesitate to point out mistakes or areas for improvement.\n")
	if title := strings.TrimSpace(job.JobTitle); title != "" {
		fmt.Fprintf(&b, "The job title is: %s\n", title)
	}
	if company := strings.TrimSpace(job.CompanyName); company != "" {
		fmt.Fprintf(&b, "The company is: %s\n", company)
	}
	if description := strings.TrimSpace(job.JobDescription); description != "" {
		fmt.Fprintf(&b, "The job description is: %s\n", description)
	}
	b.WriteString("Provide the feedback using the following format:\n")
	b.WriteString(feedbackResponseFormat)
	b.WriteString("\nReturn the analysis as a JSON object, without any other text and without backticks.\n")
	b.WriteString("Do not include any other text or comments.")
	return b.String()
}
