package story

import "fmt"

// Binding keys under which the workflow publishes its intermediate and final
// values.
const (
	KeyStory         = "story"
	KeyReviewedStory = "reviewedStory"
)

// Story is a narrative draft produced by the writer step.
type Story struct {
	Text string `json:"text"`
}

// Kind implements core.BoundValue.
func (Story) Kind() string { return "story" }

// String implements fmt.Stringer.
func (s Story) String() string { return s.Text }

// ReviewedStory pairs a story with its review and the reviewer's identity.
type ReviewedStory struct {
	Story    Story  `json:"story"`
	Review   string `json:"review"`
	Reviewer string `json:"reviewer"`
}

// Kind implements core.BoundValue.
func (ReviewedStory) Kind() string { return "reviewed_story" }

// String renders the story followed by the attributed review.
func (r ReviewedStory) String() string {
	return fmt.Sprintf("%s\n\nReview:\n%s\n\n- %s", r.Story.Text, r.Review, r.Reviewer)
}
