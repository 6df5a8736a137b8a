package story

import (
	"context"
	"fmt"

	"github.com/storymesh/reviewer/core"
	"github.com/storymesh/reviewer/model"
)

// Writer drafts a short story from a user intent.
type Writer struct {
	llm       model.Model
	persona   RoleGoalBackstory
	wordCount int
}

// WriterOptions configure a Writer.
type WriterOptions struct {
	Persona   RoleGoalBackstory
	WordCount int
}

// NewWriter creates a writer backed by the given model.
func NewWriter(llm model.Model, optFns ...func(o *WriterOptions)) *Writer {
	opts := WriterOptions{
		Persona:   writerPersona,
		WordCount: 100,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Writer{llm: llm, persona: opts.Persona, wordCount: opts.WordCount}
}

// Write generates a story draft. The intent is used as inspiration when
// present.
func (w *Writer) Write(ctx context.Context, intent string) (Story, error) {
	prompt := fmt.Sprintf(
		"Craft a short story in %d words or less.\n"+
			"The story should be engaging and imaginative.\n"+
			"Use the user's input as inspiration if they provide any.\n\n"+
			"# User input\n%s",
		w.wordCount, intent,
	)

	text, err := model.GenerateText(ctx, w.llm, model.Request{
		Instructions: w.persona.Prompt(),
		Contents:     []core.Content{core.NewTextContent("user", prompt)},
	})
	if err != nil {
		return Story{}, fmt.Errorf("write story: %w", err)
	}
	return Story{Text: text}, nil
}

// Reviewer critiques a story draft.
type Reviewer struct {
	llm       model.Model
	persona   Persona
	wordCount int
}

// ReviewerOptions configure a Reviewer.
type ReviewerOptions struct {
	Persona   Persona
	WordCount int
}

// NewReviewer creates a reviewer backed by the given model.
func NewReviewer(llm model.Model, optFns ...func(o *ReviewerOptions)) *Reviewer {
	opts := ReviewerOptions{
		Persona:   reviewerPersona,
		WordCount: 100,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reviewer{llm: llm, persona: opts.Persona, wordCount: opts.WordCount}
}

// Review critiques the story and attributes the review to the reviewer persona.
func (r *Reviewer) Review(ctx context.Context, s Story) (ReviewedStory, error) {
	prompt := fmt.Sprintf(
		"You will be given a short story to review.\n"+
			"Review it in %d words or less.\n"+
			"Consider whether the story is engaging, imaginative and well written.\n\n"+
			"# Story\n%s",
		r.wordCount, s.Text,
	)

	review, err := model.GenerateText(ctx, r.llm, model.Request{
		Instructions: r.persona.Prompt(),
		Contents:     []core.Content{core.NewTextContent("user", prompt)},
	})
	if err != nil {
		return ReviewedStory{}, fmt.Errorf("review story: %w", err)
	}
	return ReviewedStory{Story: s, Review: review, Reviewer: r.persona.Name}, nil
}

// WriteAndReview is the sequential workflow agent: it drafts a story, binds
// it, reviews the draft and binds the reviewed result. The reviewed story is
// the last bound value and therefore the run's output.
type WriteAndReview struct {
	name     string
	writer   *Writer
	reviewer *Reviewer
}

// NewWriteAndReview wires a writer and reviewer over the same model.
func NewWriteAndReview(llm model.Model) *WriteAndReview {
	return NewWriteAndReviewFrom(NewWriter(llm), NewReviewer(llm))
}

// NewWriteAndReviewFrom wires pre-configured writer and reviewer steps.
func NewWriteAndReviewFrom(writer *Writer, reviewer *Reviewer) *WriteAndReview {
	return &WriteAndReview{
		name:     "write-and-review",
		writer:   writer,
		reviewer: reviewer,
	}
}

// Name implements core.Agent.
func (a *WriteAndReview) Name() string { return a.name }

// Description implements core.Agent.
func (a *WriteAndReview) Description() string {
	return "Writes a short story from the user's input and reviews it"
}

// Run implements core.Agent. Each step binds its output before the next step
// starts, so listeners observe the draft before the review completes.
func (a *WriteAndReview) Run(rc *core.RunContext) error {
	draft, err := a.writer.Write(rc.Context, rc.Intent)
	if err != nil {
		return err
	}
	if err := rc.Bind(KeyStory, draft); err != nil {
		return err
	}

	reviewed, err := a.reviewer.Review(rc.Context, draft)
	if err != nil {
		return err
	}
	return rc.Bind(KeyReviewedStory, reviewed)
}
