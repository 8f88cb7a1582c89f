// Package uitest provides views that answer prompts in tests.
package uitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"go.abhg.dev/gitcl/internal/ui"
)

// Answer is the expected prompt and the reply to give to it.
type Answer struct {
	// Title, if set, must match the title of the prompted field.
	Title string

	// Value is fed to the field's UnmarshalValue as JSON.
	Value any
}

// ScriptView is an [ui.InteractiveView] that replies to prompts
// from a fixed list of answers, in order.
//
// Prompting with no answers left fails the test.
type ScriptView struct {
	t testing.TB

	mu      sync.Mutex
	answers []Answer
	prompts []string
	out     bytes.Buffer
}

var _ ui.InteractiveView = (*ScriptView)(nil)

// NewScriptView builds a view that replies with answers.
// The test fails at cleanup if any answers are left unused.
func NewScriptView(t testing.TB, answers ...Answer) *ScriptView {
	v := &ScriptView{t: t, answers: answers}
	t.Cleanup(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if len(v.answers) > 0 {
			t.Errorf("unused answers: %v", v.answers)
		}
	})
	return v
}

// Write records output posted to the user.
func (v *ScriptView) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.out.Write(p)
}

// Output returns everything written to the view.
func (v *ScriptView) Output() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.out.String()
}

// Prompts returns the titles of all prompted fields.
func (v *ScriptView) Prompts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.prompts...)
}

// Prompt answers each field with the next answer.
func (v *ScriptView) Prompt(fields ...ui.Field) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, f := range fields {
		v.prompts = append(v.prompts, f.Title())
		if len(v.answers) == 0 {
			v.t.Errorf("unexpected prompt: %q", f.Title())
			return fmt.Errorf("no answer for %q", f.Title())
		}

		a := v.answers[0]
		v.answers = v.answers[1:]
		if a.Title != "" && a.Title != f.Title() {
			v.t.Errorf("prompt = %q, want %q", f.Title(), a.Title)
		}

		raw, err := json.Marshal(a.Value)
		if err != nil {
			return fmt.Errorf("encode answer: %w", err)
		}
		if err := f.UnmarshalValue(func(dst any) error {
			return json.Unmarshal(raw, dst)
		}); err != nil {
			return fmt.Errorf("answer %q: %w", f.Title(), err)
		}
	}
	return nil
}
