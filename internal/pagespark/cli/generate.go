package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/forms"
	"finitefield.org/page-spark/internal/pagespark/wizard"
)

// Answers is the on-disk form of a wizard run.
type Answers struct {
	Occasion  string            `yaml:"occasion"`
	Email     string            `yaml:"email"`
	Theme     string            `yaml:"theme"`
	Font      string            `yaml:"font,omitempty"`
	Language  string            `yaml:"language,omitempty"`
	Details   map[string]string `yaml:"details,omitempty"`
	Specifics map[string]string `yaml:"specifics,omitempty"`
	// Prompt replaces the generated prompt when set.
	Prompt string `yaml:"prompt,omitempty"`
}

// LoadAnswers reads an answers file.
func LoadAnswers(r io.Reader) (Answers, error) {
	var ans Answers
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ans); err != nil && !errors.Is(err, io.EOF) {
		return Answers{}, fmt.Errorf("parse answers: %w", err)
	}
	return ans, nil
}

// merge overlays the non-empty values of over onto a.
func (a Answers) merge(over Answers) Answers {
	pick := func(base, v string) string {
		if v != "" {
			return v
		}
		return base
	}
	out := a
	out.Occasion = pick(a.Occasion, over.Occasion)
	out.Email = pick(a.Email, over.Email)
	out.Theme = pick(a.Theme, over.Theme)
	out.Font = pick(a.Font, over.Font)
	out.Language = pick(a.Language, over.Language)
	out.Prompt = pick(a.Prompt, over.Prompt)
	out.Details = mergeMaps(a.Details, over.Details)
	out.Specifics = mergeMaps(a.Specifics, over.Specifics)
	return out
}

func mergeMaps(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// apply copies the answers onto ctrl. Unknown fields are reported together.
func (a Answers) apply(ctrl *wizard.Controller) error {
	var errs []error
	if a.Occasion != "" {
		o, err := wizard.ParseOccasion(a.Occasion)
		if err != nil {
			return err
		}
		errs = append(errs, ctrl.SetOccasion(o))
	}
	ctrl.SetEmail(strings.TrimSpace(a.Email))
	for _, id := range sortedKeys(a.Details) {
		errs = append(errs, ctrl.SetCommonField(id, a.Details[id]))
	}
	if a.Theme != "" {
		errs = append(errs, ctrl.SetTheme(a.Theme))
	}
	if a.Font != "" {
		errs = append(errs, ctrl.SetFont(a.Font))
	}
	if a.Language != "" {
		errs = append(errs, ctrl.SetLanguage(a.Language))
	}
	for _, id := range sortedKeys(a.Specifics) {
		errs = append(errs, ctrl.SetSpecificField(id, a.Specifics[id]))
	}
	return errors.Join(errs...)
}

// splitFields sorts --set values into common and occasion-specific answers.
func splitFields(values map[string]string) (details, specifics map[string]string) {
	common := map[string]bool{}
	for _, f := range wizard.CommonFields() {
		common[f.ID] = true
	}
	details, specifics = map[string]string{}, map[string]string{}
	for k, v := range values {
		if common[k] {
			details[k] = v
		} else {
			specifics[k] = v
		}
	}
	return details, specifics
}

func (a *app) generateCommand() *cobra.Command {
	var (
		flags       Answers
		set         map[string]string
		answersPath string
		preview     bool
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a page from structured answers",
		Long: `Walk the page wizard non-interactively. Answers come from --answers (YAML)
and flags, flags winning. Use --set id=value for detail and occasion fields.

With --preview the backend drafts the prompt first and it is printed before
the page is generated.`,
		Example: `  pagespark generate --occasion birthday --email ana@example.com --theme fun \
    --set title="Ana turns 5" --set names=Ana --set birthday_person=Ana ...
  pagespark generate --answers party.yaml --preview`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ans := Answers{}
			if answersPath != "" {
				f, err := os.Open(answersPath)
				if err != nil {
					return err
				}
				loaded, err := LoadAnswers(f)
				f.Close()
				if err != nil {
					return err
				}
				ans = loaded
			}
			flags.Details, flags.Specifics = splitFields(set)
			ans = ans.merge(flags)

			variant := wizard.ThreeStep
			if preview {
				variant = wizard.WithPreview
			}
			return a.runWizard(a.ctx(cmd), cmd.OutOrStdout(), variant, ans, dryRun)
		},
	}
	f := cmd.Flags()
	f.StringVar(&answersPath, "answers", "", "YAML answers file")
	f.StringVar(&flags.Occasion, "occasion", "", "occasion, e.g. birthday or wedding")
	f.StringVar(&flags.Email, "email", "", "email the page is registered to")
	f.StringVar(&flags.Theme, "theme", "", "visual theme")
	f.StringVar(&flags.Font, "font", "", "font style")
	f.StringVar(&flags.Language, "language", "", "page language")
	f.StringVar(&flags.Prompt, "prompt", "", "use this prompt instead of the generated one")
	f.StringToStringVar(&set, "set", nil, "field answer as id=value (repeatable)")
	f.BoolVar(&preview, "preview", false, "draft the prompt on the backend and print it first")
	f.BoolVar(&dryRun, "dry-run", false, "print the prompt without generating the page")
	return cmd
}

func (a *app) runWizard(ctx context.Context, out io.Writer, variant wizard.Variant, ans Answers, dryRun bool) error {
	pages := a.client.Pages()
	ctrl := wizard.New(variant,
		wizard.WithPromptGenerator(pages),
		wizard.WithPageGenerator(pages),
		wizard.WithLogger(a.logger),
	)
	defer ctrl.Close()

	if err := ans.apply(ctrl); err != nil {
		return err
	}
	last := variant.Steps()
	for ctrl.Step() < last {
		step := ctrl.Step()
		if errs, ok := ctrl.Next(ctx); !ok {
			return stepError(step, errs)
		}
	}

	if variant == wizard.WithPreview {
		ctrl.Wait()
		view := ctrl.Snapshot()
		if view.PromptError != nil && ans.Prompt == "" {
			return describeFailure("Failed to generate prompt", view.PromptError)
		}
		if view.PromptError == nil {
			fmt.Fprintln(out, "Prompt:")
			fmt.Fprintln(out, indent(view.Form.GeneratedPrompt))
			fmt.Fprintln(out)
		}
	}
	if ans.Prompt != "" {
		ctrl.SetGeneratedPrompt(ans.Prompt)
	}
	if dryRun {
		if variant != wizard.WithPreview {
			fmt.Fprintln(out, ctrl.Request().Prompt)
		}
		return nil
	}

	sub, err := ctrl.Submit(ctx)
	var validation *wizard.ValidationError
	switch {
	case errors.As(err, &validation):
		return stepError(last, validation.Fields)
	case err != nil:
		return describeFailure("Failed to generate page", err)
	case sub.Response == nil:
		return errors.New("no page generator configured")
	}
	printGenerated(out, sub.Response)
	return nil
}

func stepError(step wizard.Step, errs wizard.Errors) error {
	var lines []string
	for _, field := range sortedKeys(errs) {
		lines = append(lines, fmt.Sprintf("  %s: %s", field, errs[field]))
	}
	return fmt.Errorf("step %d (%s) is incomplete:\n%s", step, step.Label(), strings.Join(lines, "\n"))
}

func (a *app) quickCommand() *cobra.Command {
	var form forms.QuickPage
	cmd := &cobra.Command{
		Use:   "quick [description]",
		Short: "Generate a page from a free-form description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				form.Prompt = args[0]
			}
			form.Prompt = strings.TrimSpace(form.Prompt)
			form.Email = strings.TrimSpace(form.Email)
			if err := formError(form.Validate()); err != nil {
				return err
			}
			resp, err := a.client.Pages().Generate(a.ctx(cmd), form.Request())
			if err != nil {
				return describeFailure("Failed to generate page", err)
			}
			printGenerated(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.Prompt, "prompt", "", "what the page should look like")
	f.StringVar(&form.Email, "email", "", "email the page is registered to")
	f.StringVar(&form.PageType, "page-type", "", "birthday, event, landing, portfolio, announcement or other")
	f.StringVar(&form.Theme, "theme", "", "light, dark, colorful, modern or elegant")
	return cmd
}

// describeFailure adds backend field errors to err's message.
func describeFailure(title string, err error) error {
	reqErr, ok := apiclient.AsRequestError(err)
	if !ok {
		return fmt.Errorf("%s: %w", title, err)
	}
	fields := reqErr.FieldErrors()
	if len(fields) == 0 {
		return fmt.Errorf("%s: %w", title, err)
	}
	var lines []string
	for _, field := range sortedKeys(fields) {
		lines = append(lines, fmt.Sprintf("  %s: %s", field, fields[field]))
	}
	return fmt.Errorf("%s: %w\n%s", title, err, strings.Join(lines, "\n"))
}
