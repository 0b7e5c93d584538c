// Package wizard drives the multi-step structured page generator: answer
// collection, per-step validation, the optional prompt preview and submission.
package wizard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/fetch"
	"finitefield.org/page-spark/internal/pagespark/forms"
	"finitefield.org/page-spark/internal/pagespark/requestctx"
)

// Variant selects the number of wizard steps.
type Variant int

const (
	// ThreeStep ends at the occasion-specific answers.
	ThreeStep Variant = iota
	// WithPreview adds a fourth step showing an editable generation prompt.
	WithPreview
)

// Steps returns the last step number for the variant.
func (v Variant) Steps() Step {
	if v == WithPreview {
		return StepPreview
	}
	return StepSpecifics
}

// PromptPending is shown in the preview while the backend drafts the prompt.
const PromptPending = "Generating your AI prompt..."

// PromptGenerator turns structured answers into a prompt. apiclient.Pages satisfies it.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, userData map[string]any) (*apiclient.GeneratePromptResponse, error)
}

// PageGenerator submits a page for generation. apiclient.Pages satisfies it.
type PageGenerator interface {
	Generate(ctx context.Context, req apiclient.GeneratePageRequest) (*apiclient.GeneratePageResponse, error)
}

// ValidationError carries the inline errors that blocked a submission.
type ValidationError struct {
	Fields Errors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wizard: %d field(s) need attention", len(e.Fields))
}

// Submission is the outcome of a successful Submit.
type Submission struct {
	Request  apiclient.GeneratePageRequest
	Response *apiclient.GeneratePageResponse
}

// View is a consistent snapshot for rendering.
type View struct {
	Variant       Variant
	Step          Step
	LastStep      Step
	Form          Form
	Errors        Errors
	PromptPending bool
	// PromptError is the last failed draft request, cleared by the next draft.
	PromptError   error
	PromptEditing bool
	Submitting    bool
	Result        *apiclient.GeneratePageResponse
}

// Controller owns one wizard session. It is safe for concurrent use.
type Controller struct {
	variant  Variant
	prompts  PromptGenerator
	pages    PageGenerator
	onScroll func()
	logger   *zap.Logger

	preview *fetch.Loader[string]

	mu            sync.Mutex
	step          Step
	form          Form
	errors        Errors
	previewGen    uint64
	promptPending bool
	promptErr     error
	promptEditing bool
	submitting    bool
	result        *apiclient.GeneratePageResponse
}

// Option customises a Controller.
type Option func(*Controller)

// WithPromptGenerator sets the collaborator used on entry to the preview step.
func WithPromptGenerator(g PromptGenerator) Option {
	return func(c *Controller) {
		c.prompts = g
	}
}

// WithPageGenerator sets the collaborator Submit sends the request to.
func WithPageGenerator(g PageGenerator) Option {
	return func(c *Controller) {
		c.pages = g
	}
}

// WithScrollToTop registers a callback fired after every successful Next.
func WithScrollToTop(fn func()) Option {
	return func(c *Controller) {
		c.onScroll = fn
	}
}

// WithLogger sets the fallback logger used when a call context carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a controller positioned at step 1 with an empty form.
func New(variant Variant, opts ...Option) *Controller {
	c := &Controller{
		variant: variant,
		logger:  zap.NewNop(),
		step:    StepOccasion,
		form:    NewForm(),
		errors:  Errors{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.preview = fetch.New(fetch.OnSettled(c.applyPrompt))
	return c
}

// Variant reports the configured variant.
func (c *Controller) Variant() Variant {
	return c.variant
}

// Step returns the current step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Form returns a copy of the collected answers.
func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.Clone()
}

// Errors returns a copy of the current inline errors.
func (c *Controller) Errors() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors.Clone()
}

// Snapshot returns everything a view needs under a single lock.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Variant:       c.variant,
		Step:          c.step,
		LastStep:      c.variant.Steps(),
		Form:          c.form.Clone(),
		Errors:        c.errors.Clone(),
		PromptPending: c.promptPending,
		PromptError:   c.promptErr,
		PromptEditing: c.promptEditing,
		Submitting:    c.submitting,
		Result:        c.result,
	}
}

// SetOccasion selects the occasion.
func (c *Controller) SetOccasion(o Occasion) error {
	if o != OccasionNone && !o.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownOccasion, int(o))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Occasion = o
	delete(c.errors, FieldOccasion)
	return nil
}

// SetEmail stores the contact email trimmed and lowercased.
func (c *Controller) SetEmail(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Email = forms.NormalizeEmail(email)
	delete(c.errors, FieldEmail)
}

// SetCommonField stores one of the occasion-independent details.
func (c *Controller) SetCommonField(id, value string) error {
	if _, ok := commonField(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Common[id] = value
	delete(c.errors, id)
	return nil
}

// SetTheme selects the visual theme. An empty value clears it.
func (c *Controller) SetTheme(theme string) error {
	if theme != "" && !validChoice(themes, theme) {
		return fmt.Errorf("%w: theme %q", ErrInvalidChoice, theme)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Theme = theme
	delete(c.errors, FieldTheme)
	return nil
}

// SetFont selects the font style.
func (c *Controller) SetFont(font string) error {
	if !validChoice(fonts, font) {
		return fmt.Errorf("%w: font %q", ErrInvalidChoice, font)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Font = font
	return nil
}

// SetLanguage selects the page language.
func (c *Controller) SetLanguage(lang string) error {
	if !validChoice(languages, lang) {
		return fmt.Errorf("%w: language %q", ErrInvalidChoice, lang)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Language = lang
	return nil
}

// SetSpecificField stores an answer for the selected occasion.
func (c *Controller) SetSpecificField(id, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.form.Occasion.field(id); !ok {
		return fmt.Errorf("%w: %q for occasion %q", ErrUnknownField, id, c.form.Occasion)
	}
	c.form.Specific[id] = value
	delete(c.errors, id)
	return nil
}

// Validate runs the rules for step against the current answers without
// touching stored errors.
func (c *Controller) Validate(step Step) Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Validate(step, c.form)
}

// Next validates the current step and advances on success. The returned
// errors replace the stored ones either way.
func (c *Controller) Next(ctx context.Context) (Errors, bool) {
	c.mu.Lock()
	errs := Validate(c.step, c.form)
	c.errors = errs
	if len(errs) > 0 || c.step >= c.variant.Steps() {
		c.mu.Unlock()
		return errs.Clone(), false
	}
	c.step++
	if c.step == StepPreview {
		c.startPromptLocked(ctx)
	}
	scroll := c.onScroll
	c.mu.Unlock()

	if scroll != nil {
		scroll()
	}
	return Errors{}, true
}

// Back moves one step back without validating. Leaving the preview drops any
// in-flight prompt generation.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step <= StepOccasion {
		c.step = StepOccasion
		return
	}
	if c.step == StepPreview {
		c.abandonPromptLocked()
	}
	c.step--
}

// RegeneratePrompt asks the backend for a fresh prompt while on the preview step.
func (c *Controller) RegeneratePrompt(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepPreview {
		return false
	}
	c.startPromptLocked(ctx)
	return true
}

// SetGeneratedPrompt replaces the preview text. A pending backend draft is discarded.
func (c *Controller) SetGeneratedPrompt(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.promptPending {
		c.abandonPromptLocked()
	}
	c.form.GeneratedPrompt = text
}

// TogglePromptEditing flips the preview between read-only and editable.
func (c *Controller) TogglePromptEditing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptEditing = !c.promptEditing
	return c.promptEditing
}

// DefaultPrompt builds the prompt locally from the current answers.
func (c *Controller) DefaultPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BuildPrompt(c.form)
}

// Request assembles the generate payload from the current answers. The
// preview text is used verbatim when present, otherwise the local prompt.
func (c *Controller) Request() apiclient.GeneratePageRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestLocked()
}

func (c *Controller) requestLocked() apiclient.GeneratePageRequest {
	prompt := c.form.GeneratedPrompt
	if prompt == "" || c.promptPending {
		prompt = BuildPrompt(c.form)
	}
	return apiclient.GeneratePageRequest{
		Prompt:   prompt,
		Email:    c.form.Email,
		PageType: c.form.Occasion.String(),
		Theme:    c.form.Theme,
		UserData: c.form.Payload(),
	}
}

// Submit validates the last step and sends the request to the page generator.
// Field errors reported by the backend are merged into the inline errors.
func (c *Controller) Submit(ctx context.Context) (*Submission, error) {
	logger := c.loggerFor(ctx)

	c.mu.Lock()
	if c.step != c.variant.Steps() {
		c.mu.Unlock()
		return nil, ErrNotLastStep
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	errs := Validate(c.step, c.form)
	c.errors = errs
	if len(errs) > 0 {
		c.mu.Unlock()
		return nil, &ValidationError{Fields: errs.Clone()}
	}
	if c.promptPending {
		c.abandonPromptLocked()
	}
	req := c.requestLocked()
	pages := c.pages
	if pages == nil {
		c.mu.Unlock()
		return &Submission{Request: req}, nil
	}
	c.submitting = true
	c.mu.Unlock()

	resp, err := pages.Generate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		if reqErr, ok := apiclient.AsRequestError(err); ok {
			for field, msg := range reqErr.FieldErrors() {
				c.errors[field] = msg
			}
		}
		logger.Warn("page generation failed", zap.String("occasion", req.PageType), zap.Error(err))
		return nil, err
	}
	c.result = resp
	logger.Info("page generated", zap.String("occasion", req.PageType), zap.String("page_id", resp.PageID))
	return &Submission{Request: req, Response: resp}, nil
}

// Result returns the last successful generation, if any.
func (c *Controller) Result() *apiclient.GeneratePageResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Reset returns to step 1 with empty answers and starts a new generation cycle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abandonPromptLocked()
	c.step = StepOccasion
	c.form = NewForm()
	c.errors = Errors{}
	c.promptEditing = false
	c.result = nil
}

// Close stops any in-flight prompt generation and waits for it to return.
func (c *Controller) Close() {
	c.preview.Close()
	c.mu.Lock()
	c.promptPending = false
	c.mu.Unlock()
}

// Wait blocks until background prompt generation has returned.
func (c *Controller) Wait() {
	c.preview.Wait()
}

func (c *Controller) startPromptLocked(ctx context.Context) {
	c.promptErr = nil
	if c.prompts == nil {
		c.form.GeneratedPrompt = BuildPrompt(c.form)
		c.promptPending = false
		return
	}
	payload := c.form.Payload()
	prompts := c.prompts
	logger := c.loggerFor(ctx)

	c.form.GeneratedPrompt = PromptPending
	c.promptPending = true
	// The request outlives the HTTP call that triggered it; Back, Reset and
	// Close cancel it instead.
	gen := c.preview.Go(context.WithoutCancel(ctx), func(ctx context.Context) (string, error) {
		resp, err := prompts.GeneratePrompt(ctx, payload)
		if err != nil {
			logger.Warn("prompt generation failed", zap.Error(err))
			return "", err
		}
		return resp.GeneratedPrompt, nil
	})
	if gen == 0 {
		c.form.GeneratedPrompt = BuildPrompt(c.form)
		c.promptPending = false
		return
	}
	c.previewGen = gen
}

func (c *Controller) abandonPromptLocked() {
	c.preview.Abandon()
	c.previewGen = c.preview.Generation()
	c.promptErr = nil
	if c.promptPending {
		c.form.GeneratedPrompt = ""
	}
	c.promptPending = false
}

func (c *Controller) applyPrompt(gen uint64, prompt string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.previewGen || !c.promptPending || c.step != StepPreview {
		return
	}
	c.promptPending = false
	if err != nil {
		c.promptErr = err
		c.form.GeneratedPrompt = fmt.Sprintf("Error generating prompt: %s\n\nYou can write your own prompt here, or go back and try again.", apiclient.Message(err))
		return
	}
	c.form.GeneratedPrompt = prompt
}

func (c *Controller) loggerFor(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
			return logger
		}
	}
	return c.logger
}
