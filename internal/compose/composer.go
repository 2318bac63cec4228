// Package compose renders the per-step outreach messages from Liquid
// templates, keeping wording out of the engine entirely.
package compose

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// defaultTemplates is the shipped 3-step sequence. Operators override any
// step from config without touching code.
var defaultTemplates = map[int]string{
	1: "Hi! 👋 I came across the profile of *{{ name }}* in {{ location }} and was impressed by its potential.\n\n" +
		"I took the liberty of preparing a complimentary *Digital Efficiency Audit* for you (attached in the next message). 📈\n\n" +
		"I noticed a large part of your operation could be automated, from consent signatures to stock control. Would you like to go over the report together?",
	2: "Hello again! 👋 Just one quick fact: practices using our platform cut patient no-shows by 40% with automated WhatsApp reminders. 🤖\n\n" +
		"Have you considered going paperless with digital records and consent signatures? I'd love to show you the full panel. Would you have 5 minutes?",
	3: "Good day! 🏥 To keep it short: this week we are releasing two implementations with the e-commerce module included for centers in your area.\n\n" +
		"It is the ideal tool for *{{ name }}* to not only manage patients but grow revenue on autopilot. Shall I send the details? Regards!",
}

// Composer renders sequence messages. Templates are parsed once and cached;
// rendering is cheap and safe for concurrent use.
type Composer struct {
	engine *liquid.Engine

	mu    sync.Mutex
	cache map[int]*liquid.Template
	src   map[int]string
}

// New creates a Composer using the built-in sequence, with any entries in
// overrides replacing the matching step's template source.
func New(overrides map[int]string) *Composer {
	src := make(map[int]string, len(defaultTemplates))
	for step, tpl := range defaultTemplates {
		src[step] = tpl
	}
	for step, tpl := range overrides {
		if tpl != "" {
			src[step] = tpl
		}
	}
	return &Composer{
		engine: liquid.NewEngine(),
		cache:  make(map[int]*liquid.Template),
		src:    src,
	}
}

// Steps returns how many sequence steps have templates.
func (c *Composer) Steps() int { return len(c.src) }

// Compose renders the message for the given step. An unknown step or a
// template error is returned to the caller; the runner records it as a
// failed attempt.
func (c *Composer) Compose(name, location string, step int) (string, error) {
	tpl, err := c.template(step)
	if err != nil {
		return "", err
	}

	out, err := tpl.RenderString(map[string]interface{}{
		"name":     name,
		"location": location,
		"step":     step,
	})
	if err != nil {
		return "", fmt.Errorf("rendering step %d: %w", step, err)
	}
	return out, nil
}

func (c *Composer) template(step int) (*liquid.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tpl, ok := c.cache[step]; ok {
		return tpl, nil
	}
	src, ok := c.src[step]
	if !ok {
		return nil, fmt.Errorf("no template for sequence step %d", step)
	}
	tpl, err := c.engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parsing step %d template: %w", step, err)
	}
	c.cache[step] = tpl
	return tpl, nil
}
