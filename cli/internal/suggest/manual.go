package suggest

import (
	"strings"

	"go.uber.org/zap"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/policy"
)

// Prompter asks the operator for text. Implementations return the entered
// text verbatim, or an error when the operator cancels.
type Prompter interface {
	Input(label, initial string) (string, error)
	Multiline(label, initial string) (string, error)
}

// Manual asks the operator for a subject and bullets until the formatted
// message passes validation. initial seeds the editors.
func (o *Orchestrator) Manual(p Prompter, initial commitmsg.Message, scope string) (commitmsg.Message, error) {
	current := initial
	for {
		subject, err := p.Input("Commit subject", current.Subject)
		if err != nil {
			return commitmsg.Message{}, err
		}
		body, err := p.Multiline("Bullets (one per line, empty to skip)", strings.Join(current.Bullets, "\n"))
		if err != nil {
			return commitmsg.Message{}, err
		}
		msg, res := o.Check(subject, SplitBullets(body, o.Format.BulletPrefix), scope)
		if res.Valid {
			return msg, nil
		}
		o.logger().Debug("manual message rejected", zap.Strings("reasons", res.Reasons))
		o.notify(res.Reasons)
		current = msg
	}
}

// Check formats an operator-supplied subject and bullets and validates the result.
func (o *Orchestrator) Check(subject string, bullets []string, scope string) (commitmsg.Message, policy.Result) {
	msg := commitmsg.Format(subject, bullets, scope, o.Format)
	// Format caps bullets; validate what the operator typed so extra bullets are reported.
	check := msg.Bullets
	if n := nonEmpty(bullets); n > len(check) {
		check = trimmed(bullets)
	}
	return msg, policy.Validate(msg.Subject, check, o.Policy)
}

// SplitBullets splits multi-line text into bullets, dropping blank lines and
// a leading bullet prefix.
func SplitBullets(text, prefix string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if prefix != "" {
			line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func nonEmpty(lines []string) int {
	return len(trimmed(lines))
}

func trimmed(lines []string) []string {
	var out []string
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
